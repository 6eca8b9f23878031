package goble

import (
	"errors"
	"fmt"
	"strings"

	"github.com/srg/bandlink/internal/transport"
)

// Adapter errors
var (
	ErrBluetoothOff        = errors.New("bluetooth is turned off")
	ErrUnsupportedPlatform = errors.New("bluetooth is not supported on this platform")
)

// NormalizeError maps known go-ble error strings to sentinel errors.
// The original error is kept in the chain.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case msg == "central manager has invalid state: have=4 want=5: is Bluetooth turned on?":
		return fmt.Errorf("%w: %v", ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "bluetooth is turned off"):
		return fmt.Errorf("%w: %v", ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "device not connected"):
		return fmt.Errorf("%w: %w", transport.ErrDisconnected, err)
	case containsIgnoreCase(msg, "disconnected"):
		return fmt.Errorf("%w: %w", transport.ErrDisconnected, err)
	default:
		return err
	}
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
