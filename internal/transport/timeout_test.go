//go:build test

package transport_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/srg/bandlink/internal/testutils"
	"github.com/srg/bandlink/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// slowSubscriber completes Subscribe only after release is closed.
type slowSubscriber struct {
	*testutils.MockTransport
	release chan struct{}
}

func (s *slowSubscriber) Subscribe(ctx context.Context, ep transport.Endpoint, h transport.Handler) error {
	<-s.release
	return s.MockTransport.Subscribe(ctx, ep, h)
}

func TestWithTimeout(t *testing.T) {
	t.Run("passes results through", func(t *testing.T) {
		// GOAL: Verify a fast transport is unaffected by the wrapper
		//
		// TEST SCENARIO: Read returns data → same data, no error

		inner := testutils.NewMockTransport()
		inner.On("Read", transport.Battery).Return([]byte{0x00, 0x63}, nil)
		tr := transport.WithTimeout(inner, time.Second)

		data, err := tr.Read(context.Background(), transport.Battery)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x00, 0x63}, data)
	})

	t.Run("wraps inner failures", func(t *testing.T) {
		// GOAL: Verify inner errors surface as transport failures naming the endpoint
		//
		// TEST SCENARIO: Write fails → *transport.Error{Op: write, Endpoint: vibration}

		inner := testutils.NewMockTransport()
		cause := errors.New("att: write not permitted")
		inner.On("Write", transport.Vibration, mock.Anything).Return(cause)
		tr := transport.WithTimeout(inner, time.Second)

		err := tr.Write(context.Background(), transport.Vibration, []byte{0x03})
		require.Error(t, err)
		assert.ErrorIs(t, err, transport.ErrTransportFailure, "MUST be a transport failure")
		assert.ErrorIs(t, err, cause, "MUST keep the cause")

		var terr *transport.Error
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, "write", terr.Op)
		assert.Equal(t, transport.Vibration, terr.Endpoint)
	})

	t.Run("times out a hung operation", func(t *testing.T) {
		// GOAL: Verify an operation that never resolves fails with ErrTimeout after the bound
		//
		// TEST SCENARIO: Read blocks forever → returns within the timeout → ErrTimeout + ErrTransportFailure

		release := make(chan struct{})
		defer close(release)
		inner := testutils.NewMockTransport()
		inner.On("Read", transport.Steps).Run(func(mock.Arguments) { <-release }).Return([]byte{}, nil)
		tr := transport.WithTimeout(inner, 20*time.Millisecond)

		start := time.Now()
		_, err := tr.Read(context.Background(), transport.Steps)
		assert.Less(t, time.Since(start), time.Second, "MUST NOT wait for the hung read")
		assert.ErrorIs(t, err, transport.ErrTimeout)
		assert.ErrorIs(t, err, transport.ErrTransportFailure)
	})

	t.Run("honors cancellation", func(t *testing.T) {
		// GOAL: Verify cancelling the caller's context releases it without a timeout error
		//
		// TEST SCENARIO: Write blocks → ctx cancelled → context.Canceled, not ErrTimeout

		release := make(chan struct{})
		defer close(release)
		inner := testutils.NewMockTransport()
		inner.On("Write", transport.Auth, mock.Anything).Run(func(mock.Arguments) { <-release }).Return(nil)
		tr := transport.WithTimeout(inner, 0)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		err := tr.Write(ctx, transport.Auth, []byte{0x02, 0x00})
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, transport.ErrTimeout)
	})

	t.Run("rolls back a late subscription", func(t *testing.T) {
		// GOAL: Verify a subscription reported as timed out does not stay registered
		//
		// TEST SCENARIO: Subscribe outlives the timeout → ErrTimeout → inner completes later → unsubscribed again

		inner := &slowSubscriber{MockTransport: testutils.NewMockTransport(), release: make(chan struct{})}
		tr := transport.WithTimeout(inner, 20*time.Millisecond)

		err := tr.Subscribe(context.Background(), transport.Auth, func([]byte) {})
		require.ErrorIs(t, err, transport.ErrTimeout)

		close(inner.release)
		assert.Eventually(t, func() bool {
			return len(inner.Unsubscribed()) == 1
		}, 2*time.Second, 5*time.Millisecond, "late subscription MUST be rolled back")
		assert.Equal(t, []transport.Endpoint{transport.Auth}, inner.Unsubscribed())
		assert.False(t, inner.Notify(transport.Auth, []byte{0x10, 0x03, 0x01}), "no handler MUST remain registered")
	})

	t.Run("already cancelled context", func(t *testing.T) {
		inner := testutils.NewMockTransport()
		tr := transport.WithTimeout(inner, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := tr.Write(ctx, transport.Auth, []byte{0x02, 0x00})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, inner.Writes(""), "MUST NOT reach the inner transport")
	})

	t.Run("forwards disconnect signal", func(t *testing.T) {
		inner := testutils.NewMockTransport()
		tr := transport.WithTimeout(inner, time.Second)

		n, ok := tr.(transport.DisconnectNotifier)
		require.True(t, ok, "wrapper MUST expose Disconnected")
		inner.Disconnect()

		select {
		case <-n.Disconnected():
		case <-time.After(time.Second):
			t.Fatal("disconnect MUST be forwarded")
		}
	})
}
