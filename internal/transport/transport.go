// Package transport defines the link the protocol engine drives: named endpoints
// that can be written, read on demand, and subscribed to for notifications.
package transport

import (
	"context"
	"errors"
	"fmt"
)

// Endpoint is a logical read/write/subscribe channel, one per device characteristic.
type Endpoint string

const (
	Auth                 Endpoint = "auth"
	HeartRateControl     Endpoint = "heartRateControl"
	HeartRateMeasurement Endpoint = "heartRateMeasurement"
	Battery              Endpoint = "battery"
	Steps                Endpoint = "steps"
	Vibration            Endpoint = "vibration"
	Notification         Endpoint = "notification"
)

// Endpoints returns every endpoint the engine uses, in a stable order.
func Endpoints() []Endpoint {
	return []Endpoint{Auth, HeartRateControl, HeartRateMeasurement, Battery, Steps, Vibration, Notification}
}

// Handler receives the raw bytes of one notification.
// Implementations may reuse the buffer after the handler returns.
type Handler func(data []byte)

// Transport is implemented by the wireless link.
type Transport interface {
	Write(ctx context.Context, ep Endpoint, data []byte) error
	Read(ctx context.Context, ep Endpoint) ([]byte, error)
	Subscribe(ctx context.Context, ep Endpoint, h Handler) error
	Unsubscribe(ctx context.Context, ep Endpoint) error
}

// DisconnectNotifier is implemented by transports that report link loss.
type DisconnectNotifier interface {
	Disconnected() <-chan struct{}
}

// Transport errors
var (
	ErrTransportFailure = errors.New("transport failure")
	ErrTimeout          = errors.New("timeout")
	ErrDisconnected     = errors.New("disconnected")
	ErrUnknownEndpoint  = errors.New("unknown endpoint")
)

// Error reports a failed transport operation on an endpoint.
type Error struct {
	Op       string // "write", "read", "subscribe", "unsubscribe"
	Endpoint Endpoint
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, ErrTransportFailure) for every transport error
func (e *Error) Is(target error) bool {
	return target == ErrTransportFailure
}

// Wrap returns err as an *Error unless it is nil or already one.
func Wrap(op string, ep Endpoint, err error) error {
	if err == nil {
		return nil
	}
	var terr *Error
	if errors.As(err, &terr) {
		return err
	}
	return &Error{Op: op, Endpoint: ep, Err: err}
}
