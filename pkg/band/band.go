// Package band connects to a band and runs an authenticated session for the
// duration of a callback.
package band

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/srg/bandlink/internal/events"
	"github.com/srg/bandlink/internal/session"
	"github.com/srg/bandlink/internal/transport"
	"github.com/srg/bandlink/internal/transport/goble"
	"github.com/srg/bandlink/pkg/config"
)

// Progress phases
const (
	PhaseConnecting     = "Connecting"
	PhaseAuthenticating = "Authenticating"
	PhaseReady          = "Ready"
	PhaseFailed         = "Failed"
)

// ProgressCallback is called when the connection phase changes
type ProgressCallback func(phase string)

// Link is a connected transport that can be closed.
type Link interface {
	transport.Transport
	transport.DisconnectNotifier
	Close() error
}

// Dial opens the link to the band (can be overridden in tests)
var Dial = func(ctx context.Context, address string, opts *goble.DialOptions, logger *logrus.Logger) (Link, error) {
	return goble.Dial(ctx, address, opts, logger)
}

// Band is an authenticated band.
type Band struct {
	Address string
	Session *session.Session
	link    Link
}

// Callback uses an authenticated band and produces output of type R
type Callback[R any] func(ctx context.Context, b *Band) (R, error)

// WithBand connects to cfg.Address, authenticates with cfg.AuthKey and runs callback.
// Events are published to sink from the moment the link is up, so subscribers attached
// before the call see connected and authenticated. The session and link are torn down
// when callback returns.
func WithBand[R any](ctx context.Context, cfg *config.Config, sink events.Sink, logger *logrus.Logger, progress ProgressCallback, callback Callback[R]) (R, error) {
	var zero R
	if logger == nil {
		logger = logrus.New()
	}
	if progress == nil {
		progress = func(string) {} // No-op callback
	}

	key, err := cfg.Key()
	if err != nil {
		return zero, err
	}

	progress(PhaseConnecting)
	link, err := Dial(ctx, cfg.Address, cfg.DialOptions(), logger)
	if err != nil {
		progress(PhaseFailed)
		return zero, err
	}
	defer func() {
		if err := link.Close(); err != nil {
			logger.WithError(err).Error("failed to disconnect band")
		}
	}()

	progress(PhaseAuthenticating)
	s := session.New(link, key, sink, cfg.SessionOptions(), logger)
	defer s.Stop()

	if err := s.Start(ctx); err != nil {
		progress(PhaseFailed)
		return zero, err
	}

	authCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := s.WaitActive(authCtx); err != nil {
		progress(PhaseFailed)
		return zero, fmt.Errorf("authentication: %w", err)
	}

	progress(PhaseReady)
	return callback(ctx, &Band{Address: cfg.Address, Session: s, link: link})
}

// Endpoints returns the endpoints the link has bound, when it reports them.
func (b *Band) Endpoints() []transport.Endpoint {
	if l, ok := b.link.(interface{ Endpoints() []transport.Endpoint }); ok {
		return l.Endpoints()
	}
	return transport.Endpoints()
}
