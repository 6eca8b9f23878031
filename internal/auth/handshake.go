// Package auth drives the band's challenge-response handshake on the auth endpoint.
//
// The exchange is:
//
//	host → band   02 00                      request a challenge
//	band → host   10 02 01 <16-byte challenge>
//	host → band   03 00 <AES-CBC(key, challenge)>
//	band → host   10 03 01                   authenticated (or 10 03 08: failed)
//
// At most one challenge is outstanding; a second challenge before the first is
// answered and confirmed aborts the attempt.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/srg/bandlink/internal/events"
	"github.com/srg/bandlink/internal/protocol"
	"github.com/srg/bandlink/internal/transport"
)

// State is a handshake state.
type State int

const (
	Idle State = iota
	KeyRequestSent
	ChallengeReceived
	ResponseSent
	Authenticated
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case KeyRequestSent:
		return "key_request_sent"
	case ChallengeReceived:
		return "challenge_received"
	case ResponseSent:
		return "response_sent"
	case Authenticated:
		return "authenticated"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrInProgress is returned by Start while an attempt is running or after success.
var ErrInProgress = errors.New("handshake in progress")

// Handshake is the authentication state machine.
type Handshake struct {
	key       protocol.AuthKey
	transport transport.Transport
	sink      events.Sink
	logger    *logrus.Logger
	dispatch  transport.Handler

	mu         sync.Mutex
	state      State
	subscribed bool
}

// Option configures a Handshake.
type Option func(*Handshake)

// WithDispatcher routes auth notifications through fn instead of handling them on the
// transport's callback. fn must eventually call HandleNotification with the data.
func WithDispatcher(fn transport.Handler) Option {
	return func(h *Handshake) {
		h.dispatch = fn
	}
}

// NewHandshake creates a Handshake in the Idle state.
func NewHandshake(key protocol.AuthKey, t transport.Transport, sink events.Sink, logger *logrus.Logger, opts ...Option) *Handshake {
	if logger == nil {
		logger = logrus.New()
	}
	if sink == nil {
		sink = events.Discard
	}
	h := &Handshake{
		key:       key,
		transport: t,
		sink:      sink,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.dispatch == nil {
		h.dispatch = func(data []byte) {
			if _, err := h.HandleNotification(context.Background(), data); err != nil {
				h.logger.WithError(err).Error("Auth notification rejected")
			}
		}
	}
	return h
}

// State returns the current state.
func (h *Handshake) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Start subscribes to the auth endpoint (once per Handshake) and requests a challenge.
// It may be called again after the handshake has Failed.
func (h *Handshake) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.state != Idle && h.state != Failed {
		state := h.state
		h.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrInProgress, state)
	}
	needSubscribe := !h.subscribed
	h.mu.Unlock()

	if needSubscribe {
		if err := h.transport.Subscribe(ctx, transport.Auth, h.dispatch); err != nil {
			return h.abort(transport.Wrap("subscribe", transport.Auth, err))
		}
		h.mu.Lock()
		h.subscribed = true
		h.mu.Unlock()
	}

	// The state must be set before writing: the challenge can arrive before Write returns.
	h.transition(KeyRequestSent)
	if err := h.transport.Write(ctx, transport.Auth, protocol.EncodeCommand(protocol.CmdRequestChallenge[:], nil)); err != nil {
		return h.abort(transport.Wrap("write", transport.Auth, err))
	}

	h.logger.Debug("Requested authentication challenge")
	return nil
}

// HandleNotification advances the state machine with one auth-channel notification and
// returns the resulting state. Protocol violations abort an unfinished handshake
// (state Failed) and are returned; a device-reported failure is emitted as a
// failure event and is not returned. Once Authenticated, any frame other than
// set-key ack is a violation and the state is kept.
func (h *Handshake) HandleNotification(ctx context.Context, data []byte) (State, error) {
	frame, err := protocol.DecodeFrame(data)
	if err != nil {
		return h.reject(err)
	}

	switch frame.Opcode {
	case protocol.OpSetKeyAck:
		h.logger.Info("Band acknowledged new auth key")
		return h.State(), nil

	case protocol.OpChallenge:
		return h.respond(ctx, frame.Payload)

	case protocol.OpAuthenticated:
		h.mu.Lock()
		// ChallengeReceived: the band answered before our response write returned.
		if h.state != ResponseSent && h.state != ChallengeReceived {
			state := h.state
			h.mu.Unlock()
			return h.reject(fmt.Errorf("%w: %s in state %s", protocol.ErrUnexpectedFrame, frame.Opcode, state))
		}
		h.state = Authenticated
		h.mu.Unlock()

		h.logger.Info("Authentication successful")
		h.sink.Emit(events.Authenticated, nil)
		return Authenticated, nil

	case protocol.OpAuthFailed:
		if h.State() == Authenticated {
			return h.reject(fmt.Errorf("%w: %s in state %s", protocol.ErrUnexpectedFrame, frame.Opcode, Authenticated))
		}
		h.transition(Failed)
		h.logger.Warn("Band rejected authentication")
		h.sink.Emit(events.Failure, protocol.ErrAuthenticationFailed)
		return Failed, nil

	default:
		return h.reject(&protocol.UnknownFrameError{Opcode: frame.Opcode})
	}
}

// respond answers a challenge.
func (h *Handshake) respond(ctx context.Context, challenge []byte) (State, error) {
	h.mu.Lock()
	if h.state != KeyRequestSent {
		state := h.state
		h.mu.Unlock()
		return h.reject(fmt.Errorf("%w: received in state %s", protocol.ErrUnexpectedChallenge, state))
	}
	h.state = ChallengeReceived
	h.mu.Unlock()

	h.logger.WithField("challenge_len", len(challenge)).Debug("Received authentication challenge")

	ciphertext, err := protocol.EncryptChallenge(h.key, challenge)
	if err != nil {
		return h.reject(err)
	}

	if err := h.transport.Write(ctx, transport.Auth, protocol.EncodeAuthResponse(ciphertext)); err != nil {
		return h.reject(transport.Wrap("write", transport.Auth, err))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	// Anything that happened during the write (abort, early confirmation) wins.
	if h.state == ChallengeReceived {
		h.state = ResponseSent
		h.logger.Debug("Sent authentication response")
	}
	return h.state, nil
}

func (h *Handshake) transition(to State) {
	h.mu.Lock()
	from := h.state
	h.state = to
	h.mu.Unlock()

	h.logger.WithFields(logrus.Fields{
		"from": from.String(),
		"to":   to.String(),
	}).Debug("Handshake state changed")
}

// reject reports a protocol violation. An unfinished handshake is aborted;
// an established one stays Authenticated.
func (h *Handshake) reject(err error) (State, error) {
	h.mu.Lock()
	authenticated := h.state == Authenticated
	h.mu.Unlock()

	if authenticated {
		h.logger.WithError(err).Error("Protocol violation on auth channel")
		return Authenticated, err
	}
	return Failed, h.abort(err)
}

func (h *Handshake) abort(err error) error {
	h.transition(Failed)
	h.logger.WithError(err).Error("Handshake aborted")
	h.sink.Emit(events.Failure, err)
	return err
}
