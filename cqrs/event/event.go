// Package event implements the event side of the runtime: the Event value,
// the Store contract used for persistence and replay, and the Dispatcher that
// fans events out to subscribed handlers.
package event

import (
	"time"
)

// Payload is the opaque structured body of an event.
type Payload = map[string]any

// Event is an immutable fact produced by a successful command.
type Event struct {
	// UUID identifies the event. The dispatcher assigns one when empty.
	UUID string `json:"uuid"`
	// Name routes the event to its subscribers, e.g. "Hotel.roomBooked".
	Name string `json:"name"`
	// Time is when the event happened.
	Time time.Time `json:"time"`
	// SagaID is set when the event was produced by a saga task.
	SagaID string `json:"saga_id,omitempty"`
	// Payload is the event body.
	Payload Payload `json:"payload,omitempty"`
}

// New returns an event named name carrying payload, stamped with the current time.
func New(name string, payload Payload) Event {
	return Event{
		Name:    name,
		Time:    time.Now().UTC(),
		Payload: payload,
	}
}

// Clone returns a copy of e whose payload shares no maps or slices with e.
func (e Event) Clone() Event {
	c := e
	if e.Payload != nil {
		c.Payload = clonePayload(e.Payload)
	}
	return c
}

func clonePayload(p Payload) Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return clonePayload(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
