// Package command implements the write side of the runtime: commands are routed
// to exactly one handler, executed under optimistic concurrency control and
// their resulting events forwarded to the event dispatcher.
package command

import (
	"context"
	"time"

	"github.com/rise-and-shine/dddbase/cqrs/event"
	"github.com/rise-and-shine/dddbase/version"
)

// Payload is the opaque structured body of a command.
type Payload = map[string]any

// Command is an intent to change state.
type Command struct {
	// Name routes the command to its handler, e.g. "Hotel.bookRoom".
	Name string `json:"name"`
	// Time is when the command was issued. Dispatch stamps it when zero.
	Time time.Time `json:"time"`
	// Payload is the command body.
	Payload Payload `json:"payload,omitempty"`
	// SagaID is set by the saga orchestrator and copied onto every produced event.
	SagaID string `json:"saga_id,omitempty"`
}

// New returns a command named name carrying payload, stamped with the current time.
func New(name string, payload Payload) Command {
	return Command{Name: name, Time: time.Now().UTC(), Payload: payload}
}

// Handler executes commands. It is unaware of versioning: the dispatcher reads
// the versions of the entities reported by AffectedEntities before and after
// Execute and retries on any difference.
type Handler interface {
	// AffectedEntities lists the entities Execute is going to change.
	AffectedEntities(ctx context.Context, cmd Command) ([]version.Entity, error)
	// Execute applies cmd and returns the events describing the change.
	Execute(ctx context.Context, cmd Command) ([]event.Event, error)
}

// WrapFunc decorates a Handler with a cross-cutting concern.
type WrapFunc func(Handler) Handler

// Chain wraps h with wrappers. The first wrapper is the outermost one.
func Chain(h Handler, wrappers ...WrapFunc) Handler {
	for i := len(wrappers) - 1; i >= 0; i-- {
		h = wrappers[i](h)
	}
	return h
}
