package transport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// timeoutTransport bounds every operation of the wrapped transport.
type timeoutTransport struct {
	inner   Transport
	timeout time.Duration
}

// WithTimeout wraps t so that every operation returns once its context is done or
// the timeout elapses, whichever comes first, even if t ignores its context.
// A late result from t is discarded. A timeout <= 0 applies cancellation only.
func WithTimeout(t Transport, timeout time.Duration) Transport {
	return &timeoutTransport{inner: t, timeout: timeout}
}

type result struct {
	data []byte
	err  error
}

func (t *timeoutTransport) do(ctx context.Context, op string, ep Endpoint, fn func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	return t.run(ctx, op, ep, fn, nil)
}

// run is do with late called, on its own goroutine, with the result of an
// operation that completes after the caller was released.
func (t *timeoutTransport) run(ctx context.Context, op string, ep Endpoint, fn func(ctx context.Context) ([]byte, error), late func(result)) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, Wrap(op, ep, err)
	}

	var cancel context.CancelFunc
	if t.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	resultCh := make(chan result, 1)
	go func() {
		data, err := fn(ctx)
		resultCh <- result{data: data, err: err}
	}()

	select {
	case r := <-resultCh:
		return r.data, Wrap(op, ep, r.err)
	case <-ctx.Done():
		if late != nil {
			go func() { late(<-resultCh) }()
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, Wrap(op, ep, fmt.Errorf("%w after %v", ErrTimeout, t.timeout))
		}
		return nil, Wrap(op, ep, ctx.Err())
	}
}

func (t *timeoutTransport) Write(ctx context.Context, ep Endpoint, data []byte) error {
	_, err := t.do(ctx, "write", ep, func(ctx context.Context) ([]byte, error) {
		return nil, t.inner.Write(ctx, ep, data)
	})
	return err
}

func (t *timeoutTransport) Read(ctx context.Context, ep Endpoint) ([]byte, error) {
	return t.do(ctx, "read", ep, func(ctx context.Context) ([]byte, error) {
		return t.inner.Read(ctx, ep)
	})
}

// Subscribe reports a subscription that misses the deadline as failed. If the
// wrapped transport completes it afterwards, it is unsubscribed again so that no
// handler stays registered behind a reported failure.
func (t *timeoutTransport) Subscribe(ctx context.Context, ep Endpoint, h Handler) error {
	_, err := t.run(ctx, "subscribe", ep, func(ctx context.Context) ([]byte, error) {
		return nil, t.inner.Subscribe(ctx, ep, h)
	}, func(r result) {
		if r.err != nil {
			return
		}
		ctx, cancel := t.rollbackContext()
		defer cancel()
		_ = t.inner.Unsubscribe(ctx, ep)
	})
	return err
}

func (t *timeoutTransport) rollbackContext() (context.Context, context.CancelFunc) {
	if t.timeout > 0 {
		return context.WithTimeout(context.Background(), t.timeout)
	}
	return context.WithCancel(context.Background())
}

func (t *timeoutTransport) Unsubscribe(ctx context.Context, ep Endpoint) error {
	_, err := t.do(ctx, "unsubscribe", ep, func(ctx context.Context) ([]byte, error) {
		return nil, t.inner.Unsubscribe(ctx, ep)
	})
	return err
}

// Disconnected forwards the wrapped transport's link-loss signal, if any.
// The returned channel never fires when the wrapped transport has none.
func (t *timeoutTransport) Disconnected() <-chan struct{} {
	if n, ok := t.inner.(DisconnectNotifier); ok {
		return n.Disconnected()
	}
	return nil
}
