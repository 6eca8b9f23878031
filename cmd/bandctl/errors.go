package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/srg/bandlink/internal/protocol"
	"github.com/srg/bandlink/internal/session"
	"github.com/srg/bandlink/internal/transport"
	"github.com/srg/bandlink/internal/transport/goble"
)

// Command-level errors
var (
	// ErrConnectionLost indicates the link dropped while a command was running.
	// This is distinct from session.ErrNotActive, which indicates a command issued
	// before authentication completed.
	ErrConnectionLost = errors.New("connection lost")

	// ErrNoKey indicates no auth key was supplied and none could be prompted for.
	ErrNoKey = errors.New("no auth key")
)

// FormatUserError turns engine errors into short, actionable messages.
// Unknown errors are returned unchanged.
func FormatUserError(err error) string {
	switch {
	case errors.Is(err, ErrConnectionLost), errors.Is(err, transport.ErrDisconnected):
		return "connection to the band was lost"
	case errors.Is(err, goble.ErrBluetoothOff):
		return "Bluetooth is turned off; enable it and try again"
	case errors.Is(err, goble.ErrUnsupportedPlatform):
		return "Bluetooth is not supported on this platform"
	case errors.Is(err, ErrNoKey):
		return "an auth key is required: pass --key, set auth_key in the config, or set BANDLINK_AUTH_KEY"
	case errors.Is(err, protocol.ErrInvalidKey):
		return fmt.Sprintf("%v (expected 32 hex characters)", err)
	case errors.Is(err, protocol.ErrAuthenticationFailed):
		return "the band rejected the auth key"
	case errors.Is(err, protocol.ErrUnexpectedChallenge), errors.Is(err, protocol.ErrUnknownFrame),
		errors.Is(err, protocol.ErrMalformedFrame), errors.Is(err, protocol.ErrUnexpectedFrame):
		return fmt.Sprintf("authentication protocol error: %v", err)
	case errors.Is(err, session.ErrNotActive):
		return "the band is not authenticated yet"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, transport.ErrTimeout):
		return fmt.Sprintf("timed out: %v", err)
	default:
		return err.Error()
	}
}
