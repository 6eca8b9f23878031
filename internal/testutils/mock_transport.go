//go:build test

package testutils

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/srg/bandlink/internal/transport"
	"github.com/stretchr/testify/mock"
)

// Write is one recorded transport write.
type Write struct {
	Endpoint transport.Endpoint
	Data     []byte
}

// MockTransport is a transport.Transport double.
//
// Write and Read go through testify/mock, so tests set expectations with
//
//	m.On("Write", transport.Auth, mock.Anything).Return(nil)
//	m.On("Read", transport.Battery).Return([]byte{0x00, 0x63}, nil)
//
// Subscribe and Unsubscribe are handled locally: handlers are captured so tests can
// inject notifications with Notify. Every write is recorded regardless of its outcome.
type MockTransport struct {
	mock.Mock

	mu           sync.Mutex
	handlers     map[transport.Endpoint]transport.Handler
	captured     map[transport.Endpoint]transport.Handler
	subscribeErr map[transport.Endpoint]error
	writes       []Write
	reads        map[transport.Endpoint]int
	unsubscribed []transport.Endpoint
	disconnected chan struct{}
	discOnce     sync.Once
	closed       bool
}

// NewMockTransport creates an empty MockTransport.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		handlers:     make(map[transport.Endpoint]transport.Handler),
		captured:     make(map[transport.Endpoint]transport.Handler),
		subscribeErr: make(map[transport.Endpoint]error),
		reads:        make(map[transport.Endpoint]int),
		disconnected: make(chan struct{}),
	}
}

func (m *MockTransport) Write(_ context.Context, ep transport.Endpoint, data []byte) error {
	m.mu.Lock()
	m.writes = append(m.writes, Write{Endpoint: ep, Data: bytes.Clone(data)})
	m.mu.Unlock()

	args := m.Called(ep, data)
	return args.Error(0)
}

func (m *MockTransport) Read(_ context.Context, ep transport.Endpoint) ([]byte, error) {
	m.mu.Lock()
	m.reads[ep]++
	m.mu.Unlock()

	args := m.Called(ep)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockTransport) Subscribe(_ context.Context, ep transport.Endpoint, h transport.Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.subscribeErr[ep]; err != nil {
		return err
	}
	m.handlers[ep] = h
	m.captured[ep] = h
	return nil
}

func (m *MockTransport) Unsubscribe(_ context.Context, ep transport.Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsubscribed = append(m.unsubscribed, ep)
	if _, ok := m.handlers[ep]; !ok {
		return fmt.Errorf("%s: not subscribed", ep)
	}
	delete(m.handlers, ep)
	return nil
}

func (m *MockTransport) Disconnected() <-chan struct{} {
	return m.disconnected
}

// Close simulates the host closing the link.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.Disconnect()
	return nil
}

// Closed reports whether Close was called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// FailSubscribe makes the next subscriptions to ep fail with err.
func (m *MockTransport) FailSubscribe(ep transport.Endpoint, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribeErr[ep] = err
}

// Disconnect simulates link loss.
func (m *MockTransport) Disconnect() {
	m.discOnce.Do(func() { close(m.disconnected) })
}

// Notify delivers data to the handler subscribed on ep, synchronously.
// Returns false when nothing is subscribed.
func (m *MockTransport) Notify(ep transport.Endpoint, data []byte) bool {
	m.mu.Lock()
	h, ok := m.handlers[ep]
	m.mu.Unlock()
	if !ok {
		return false
	}
	h(bytes.Clone(data))
	return true
}

// Handler returns the captured handler for ep, even after it was unsubscribed.
// Use it to simulate a notification the link had queued before cancellation.
func (m *MockTransport) Handler(ep transport.Endpoint) transport.Handler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.captured[ep]
}

// IsSubscribed reports whether a handler is registered on ep.
func (m *MockTransport) IsSubscribed(ep transport.Endpoint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.handlers[ep]
	return ok
}

// Writes returns the recorded writes to ep, or all writes when ep is empty.
func (m *MockTransport) Writes(ep transport.Endpoint) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out [][]byte
	for _, w := range m.writes {
		if ep == "" || w.Endpoint == ep {
			out = append(out, w.Data)
		}
	}
	return out
}

// ReadCount returns how many reads of ep were issued.
func (m *MockTransport) ReadCount(ep transport.Endpoint) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads[ep]
}

// Unsubscribed returns the endpoints Unsubscribe was called with, in order.
func (m *MockTransport) Unsubscribed() []transport.Endpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]transport.Endpoint(nil), m.unsubscribed...)
}
