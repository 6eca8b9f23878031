//go:build test

package testutils

import (
	"sync"

	"github.com/srg/bandlink/internal/events"
)

// EventRecorder is a synchronous events.Sink that keeps everything it receives.
type EventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

func (r *EventRecorder) Emit(name events.Name, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events.Event{Name: name, Payload: payload})
}

// Events returns a copy of the recorded events, optionally filtered by name.
func (r *EventRecorder) Events(names ...events.Name) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, ev := range r.events {
		if len(names) == 0 || contains(names, ev.Name) {
			out = append(out, ev)
		}
	}
	return out
}

// Payloads returns the payloads recorded for name, in order.
func (r *EventRecorder) Payloads(name events.Name) []any {
	var out []any
	for _, ev := range r.Events(name) {
		out = append(out, ev.Payload)
	}
	return out
}

// Count returns how many events named name were recorded.
func (r *EventRecorder) Count(name events.Name) int {
	return len(r.Events(name))
}

// Names returns the recorded event names, in order.
func (r *EventRecorder) Names() []events.Name {
	var out []events.Name
	for _, ev := range r.Events() {
		out = append(out, ev.Name)
	}
	return out
}

// Reset forgets everything recorded so far.
func (r *EventRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func contains(names []events.Name, n events.Name) bool {
	for _, x := range names {
		if x == n {
			return true
		}
	}
	return false
}
