// Package events is the engine's outbound event surface: a closed set of event
// names, a fire-and-forget Sink, and a Bus that fans events out to observers.
package events

import "time"

// Name identifies an event stream.
type Name string

const (
	Connected     Name = "connected"     // no payload
	Authenticated Name = "authenticated" // no payload
	HeartRate     Name = "heartrate"     // int16
	Power         Name = "power"         // int8
	Steps         Name = "steps"         // uint32
	Distance      Name = "distance"      // uint32
	Calories      Name = "calories"      // uint32
	Failure       Name = "failure"       // error
)

// Names returns every event name.
func Names() []Name {
	return []Name{Connected, Authenticated, HeartRate, Power, Steps, Distance, Calories, Failure}
}

// Valid reports whether n belongs to the closed set of event names.
func (n Name) Valid() bool {
	switch n {
	case Connected, Authenticated, HeartRate, Power, Steps, Distance, Calories, Failure:
		return true
	}
	return false
}

// Event is one published occurrence.
type Event struct {
	Name    Name
	Payload any
	Time    time.Time
}

// Sink accepts events. Emit must not block for long and never fails.
type Sink interface {
	Emit(name Name, payload any)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(name Name, payload any)

func (f SinkFunc) Emit(name Name, payload any) {
	f(name, payload)
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(Name, any) {})
