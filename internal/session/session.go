// Package session owns an authenticated connection to the band: it runs the
// handshake, turns telemetry notifications and periodic reads into events, and
// exposes the band's command surface once authenticated.
//
// A Session is single-use. After link loss or Stop a new Session must be built on a
// fresh transport; nothing is resumed.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/bandlink/internal/auth"
	"github.com/srg/bandlink/internal/events"
	"github.com/srg/bandlink/internal/groutine"
	"github.com/srg/bandlink/internal/protocol"
	"github.com/srg/bandlink/internal/telemetry"
	"github.com/srg/bandlink/internal/transport"
)

// State is the session lifecycle state.
type State int

const (
	Disconnected State = iota
	Authenticating
	Active
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Authenticating:
		return "authenticating"
	case Active:
		return "active"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session errors
var (
	ErrNotActive      = errors.New("session is not active")
	ErrClosed         = errors.New("session closed")
	ErrAlreadyStarted = errors.New("session already started")
)

// Options controls session timing.
type Options struct {
	PollInterval          time.Duration `default:"1s"`
	HeartRatePingInterval time.Duration `default:"1s"`
	IOTimeout             time.Duration `default:"5s"`
	InboxSize             int           `default:"32"`
}

// DefaultOptions returns Options with every field set to its default.
func DefaultOptions() *Options {
	opts := &Options{}
	defaults.SetDefaults(opts)
	return opts
}

type notification struct {
	endpoint transport.Endpoint
	data     []byte
}

// Session is the session controller.
type Session struct {
	transport transport.Transport
	sink      events.Sink
	logger    *logrus.Logger
	opts      Options
	handshake *auth.Handshake

	mu      sync.Mutex
	state   State
	started bool
	err     error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	inbox      chan notification
	active     chan struct{}
	failed     chan error
	done       chan struct{}
	activeOnce sync.Once
	stopOnce   sync.Once

	pollers []*poller
}

// New creates a Session over t. Every transport operation is bounded by opts.IOTimeout.
// A nil opts uses DefaultOptions.
func New(t transport.Transport, key protocol.AuthKey, sink events.Sink, opts *Options, logger *logrus.Logger) *Session {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = logrus.New()
	}
	if sink == nil {
		sink = events.Discard
	}

	s := &Session{
		transport: transport.WithTimeout(t, opts.IOTimeout),
		sink:      sink,
		logger:    logger,
		opts:      *opts,
		inbox:     make(chan notification, max(opts.InboxSize, 1)),
		active:    make(chan struct{}),
		failed:    make(chan error, 1),
		done:      make(chan struct{}),
	}
	s.handshake = auth.NewHandshake(key, s.transport, sink, logger, auth.WithDispatcher(s.enqueue(transport.Auth)))
	return s
}

// Start emits connected and begins the handshake. The session lives until ctx is
// done, Stop is called, or the transport reports link loss.
//
// A handshake error is returned, but the session stays up in Authenticating so that
// Reauthenticate can retry; call Stop to release it.
func (s *Session) Start(ctx context.Context) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.state = Authenticating
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Unlock()

	groutine.GoTracked(s.ctx, &s.wg, "session-inbox", s.loop)
	go s.monitor(ctx)

	s.logger.Info("Connected, starting authentication")
	s.emit(s.ctx, events.Connected, nil)

	if err := s.handshake.Start(s.ctx); err != nil {
		s.fail(err)
		return fmt.Errorf("authentication: %w", err)
	}
	return nil
}

// Reauthenticate restarts a failed handshake.
func (s *Session) Reauthenticate(ctx context.Context) error {
	if st := s.State(); st != Authenticating {
		return fmt.Errorf("cannot reauthenticate in state %s", st)
	}

	// drop a stale failure so WaitActive reports the new attempt
	select {
	case <-s.failed:
	default:
	}

	if err := s.handshake.Start(ctx); err != nil {
		// a refused call leaves the running attempt untouched
		if !errors.Is(err, auth.ErrInProgress) {
			s.fail(err)
		}
		return fmt.Errorf("authentication: %w", err)
	}
	return nil
}

// WaitActive blocks until the session is Active, the handshake fails, the session
// ends, or ctx is done.
func (s *Session) WaitActive(ctx context.Context) error {
	select {
	case <-s.done:
		return s.closedErr()
	default:
	}
	select {
	case <-s.active:
		return nil
	default:
	}

	select {
	case <-s.active:
		return nil
	case err := <-s.failed:
		return err
	case <-s.done:
		return s.closedErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) closedErr() error {
	if err := s.Err(); err != nil {
		return err
	}
	return ErrClosed
}

// Stop cancels polls, waits for in-flight handlers, and unsubscribes. No event is
// emitted after Stop returns. Safe to call more than once.
func (s *Session) Stop() {
	s.shutdown(nil)
}

// Done is closed once the session has ended.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns transport.ErrDisconnected after link loss, or the last handshake
// failure if the session never became active.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SendVibration triggers the band's vibration alert.
func (s *Session) SendVibration(ctx context.Context) error {
	if err := s.requireActive(); err != nil {
		return err
	}
	return s.transport.Write(ctx, transport.Vibration, protocol.EncodeCommand(protocol.CmdVibrate[:], nil))
}

// SendNotification shows text on the band under category.
func (s *Session) SendNotification(ctx context.Context, category protocol.AlertCategory, text string) error {
	if err := s.requireActive(); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"category": fmt.Sprintf("0x%02x", byte(category)),
		"length":   len(text),
	}).Debug("Sending notification")
	return s.transport.Write(ctx, transport.Notification, protocol.EncodeNotification(category, text))
}

func (s *Session) requireActive() error {
	if st := s.State(); st != Active {
		return fmt.Errorf("%w (state %s)", ErrNotActive, st)
	}
	return nil
}

// enqueue returns a transport handler that hands notifications from ep to the loop.
func (s *Session) enqueue(ep transport.Endpoint) transport.Handler {
	return func(data []byte) {
		ctx := s.ctx
		if ctx == nil || ctx.Err() != nil {
			return
		}
		select {
		case s.inbox <- notification{endpoint: ep, data: bytes.Clone(data)}:
		case <-ctx.Done():
		}
	}
}

// loop handles notifications one at a time, in arrival order.
func (s *Session) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-s.inbox:
			if ctx.Err() != nil {
				return
			}
			s.handle(ctx, n)
		}
	}
}

func (s *Session) handle(ctx context.Context, n notification) {
	switch n.endpoint {
	case transport.Auth:
		state, err := s.handshake.HandleNotification(ctx, n.data)
		switch {
		case err != nil && state == auth.Authenticated:
			s.report(ctx, "Auth channel violation on active session", err)
		case err != nil:
			s.fail(err)
		case state == auth.Failed:
			s.fail(protocol.ErrAuthenticationFailed)
		case state == auth.Authenticated && s.State() == Authenticating:
			s.activate(ctx)
		}

	case transport.HeartRateMeasurement:
		bpm, err := telemetry.DecodeHeartRate(n.data)
		if err != nil {
			s.logger.WithError(err).Warn("Dropping heart rate sample")
			return
		}
		s.emit(ctx, events.HeartRate, bpm)

	default:
		s.logger.WithField("endpoint", n.endpoint).Warn("Notification on unexpected endpoint")
	}
}

// activate enables telemetry once the handshake has succeeded.
func (s *Session) activate(ctx context.Context) {
	s.mu.Lock()
	s.state = Active
	s.err = nil
	s.mu.Unlock()
	select {
	case <-s.failed:
	default:
	}
	s.activeOnce.Do(func() { close(s.active) })

	s.logger.Info("Session active, enabling telemetry")

	if err := s.transport.Write(ctx, transport.HeartRateControl, protocol.EncodeCommand(protocol.CmdEnableHeartRate[:], nil)); err != nil {
		s.report(ctx, "Failed to enable heart rate", err)
	}
	if err := s.transport.Subscribe(ctx, transport.HeartRateMeasurement, s.enqueue(transport.HeartRateMeasurement)); err != nil {
		s.report(ctx, "Failed to subscribe to heart rate", err)
	}

	onError := func(err error) { s.emit(ctx, events.Failure, err) }
	s.pollers = []*poller{
		newPoller("battery", s.opts.PollInterval, s.pollBattery, onError, s.logger),
		newPoller("activity", s.opts.PollInterval, s.pollActivity, onError, s.logger),
		newPoller("heart-rate-ping", s.opts.HeartRatePingInterval, s.pingHeartRate, onError, s.logger),
	}
	for _, p := range s.pollers {
		groutine.GoTracked(ctx, &s.wg, "poller-"+p.name, func(ctx context.Context) {
			p.run(ctx, &s.wg)
		})
	}
}

func (s *Session) pollBattery(ctx context.Context) error {
	data, err := s.transport.Read(ctx, transport.Battery)
	if err != nil {
		return err
	}
	level, err := telemetry.DecodeBattery(data)
	if err != nil {
		return err
	}
	s.emit(ctx, events.Power, level)
	return nil
}

func (s *Session) pollActivity(ctx context.Context) error {
	data, err := s.transport.Read(ctx, transport.Steps)
	if err != nil {
		return err
	}
	activity, err := telemetry.DecodeActivity(data)
	if err != nil {
		return err
	}
	s.emit(ctx, events.Steps, activity.Steps)
	s.emit(ctx, events.Distance, activity.DistanceMeters)
	s.emit(ctx, events.Calories, activity.Calories)
	return nil
}

// pingHeartRate keeps the band's heart-rate stream alive.
func (s *Session) pingHeartRate(ctx context.Context) error {
	return s.transport.Write(ctx, transport.HeartRateControl, protocol.EncodeCommand(protocol.CmdHeartRatePing[:], nil))
}

// emit publishes unless ctx is already cancelled.
func (s *Session) emit(ctx context.Context, name events.Name, payload any) {
	if ctx.Err() != nil {
		return
	}
	s.sink.Emit(name, payload)
}

func (s *Session) report(ctx context.Context, msg string, err error) {
	s.logger.WithError(err).Warn(msg)
	s.emit(ctx, events.Failure, err)
}

// fail records a handshake error for WaitActive and Err. The failure event itself
// comes from the handshake.
func (s *Session) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()

	select {
	case s.failed <- err:
	default:
	}
}

// monitor ends the session on parent cancellation or link loss.
func (s *Session) monitor(parent context.Context) {
	var disconnected <-chan struct{}
	if n, ok := s.transport.(transport.DisconnectNotifier); ok {
		disconnected = n.Disconnected()
	}

	select {
	case <-parent.Done():
		s.shutdown(nil)
	case <-disconnected:
		s.logger.Info("Device disconnected")
		s.shutdown(transport.ErrDisconnected)
	case <-s.ctx.Done():
	}
}

func (s *Session) shutdown(cause error) {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		started := s.started
		wasActive := s.state == Active
		s.mu.Unlock()

		if started {
			s.cancel()
			s.wg.Wait()
		}

		// the link is gone; unsubscribing would only wait for timeouts
		if started && cause == nil {
			ctx, cancel := context.WithTimeout(context.Background(), s.opts.IOTimeout)
			endpoints := []transport.Endpoint{transport.Auth}
			if wasActive {
				endpoints = append(endpoints, transport.HeartRateMeasurement)
			}
			for _, ep := range endpoints {
				if err := s.transport.Unsubscribe(ctx, ep); err != nil {
					s.logger.WithError(err).WithField("endpoint", ep).Debug("Unsubscribe failed")
				}
			}
			cancel()
		}

		s.mu.Lock()
		s.state = Disconnected
		if cause != nil {
			s.err = cause
		}
		s.mu.Unlock()

		close(s.done)
		s.logger.Info("Session closed")
	})
}
