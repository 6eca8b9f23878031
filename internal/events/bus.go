package events

import (
	"sync"
	"time"

	"github.com/cskr/pubsub/v2"
	"github.com/sirupsen/logrus"
)

// DefaultCapacity is the per-subscriber channel buffer of a Bus.
const DefaultCapacity = 16

// Bus publishes events to subscribers registered per event name.
// Events of one name reach a subscriber in emission order; there is no ordering across names.
// A subscriber that stops draining its channel eventually blocks Emit.
type Bus struct {
	ps     *pubsub.PubSub[Name, Event]
	logger *logrus.Logger

	mu      sync.RWMutex
	closed  bool
	pending sync.WaitGroup // unsubscribes not yet seen by pubsub
}

// NewBus creates a Bus whose subscriber channels buffer capacity events.
func NewBus(capacity int, logger *logrus.Logger) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Bus{
		ps:     pubsub.New[Name, Event](capacity),
		logger: logger,
	}
}

// Emit implements Sink. Unknown names and emits after Close are dropped.
func (b *Bus) Emit(name Name, payload any) {
	if !name.Valid() {
		b.logger.WithField("event", name).Warn("Dropping event with unknown name")
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	b.ps.Pub(Event{Name: name, Payload: payload, Time: time.Now()}, name)
}

// Subscription is a channel of events for a set of names.
type Subscription struct {
	C <-chan Event

	ch    chan Event
	names []Name
	bus   *Bus
	once  sync.Once
}

// Subscribe registers for the given names, or for every name when none are given.
// Callers must keep draining C until Close returns and C is closed.
func (b *Bus) Subscribe(names ...Name) *Subscription {
	if len(names) == 0 {
		names = Names()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		ch := make(chan Event)
		close(ch)
		return &Subscription{C: ch, ch: ch}
	}

	ch := b.ps.Sub(names...)
	return &Subscription{C: ch, ch: ch, names: names, bus: b}
}

// Close unsubscribes. C is closed once pending events are flushed.
func (s *Subscription) Close() {
	if s.bus == nil {
		return
	}
	s.once.Do(func() {
		s.bus.mu.RLock()
		defer s.bus.mu.RUnlock()
		if s.bus.closed {
			return // Shutdown already closed the channel
		}
		// Unsub must not run on the goroutine that drains C.
		s.bus.pending.Add(1)
		go func() {
			defer s.bus.pending.Done()
			s.bus.ps.Unsub(s.ch, s.names...)
		}()
	})
}

// Close shuts the bus down and closes every subscriber channel. Subscribers must
// keep draining until their channel is closed.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	// Shutdown stops the pubsub loop; an Unsub sent after it would block forever.
	b.pending.Wait()
	b.ps.Shutdown()
}
