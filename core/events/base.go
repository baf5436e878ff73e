package events

import "time"

// Kind is the namespaced identifier of an event, e.g. "user_input.speech_started".
type Kind string

func (k Kind) String() string { return string(k) }

type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

// Base carries the fields shared by every event and is embedded by all
// concrete event types.
type Base struct {
	kind      Kind
	timestamp time.Time
}

func NewBase(kind Kind) Base {
	return Base{kind: kind, timestamp: time.Now()}
}

func (b Base) Kind() Kind           { return b.kind }
func (b Base) Timestamp() time.Time { return b.timestamp }

// Handler receives events. Handlers are called synchronously by the emitter
// and must not block for long.
type Handler func(Event)

// Fanout returns a handler that forwards every event to all non-nil handlers
// in order.
func Fanout(handlers ...Handler) Handler {
	active := make([]Handler, 0, len(handlers))
	for _, handler := range handlers {
		if handler != nil {
			active = append(active, handler)
		}
	}

	return func(event Event) {
		for _, handler := range active {
			handler(event)
		}
	}
}
