// Package entity offers the building blocks domain code registers with the
// dispatchers: Root for aggregates that handle commands and events, and
// ReadModel for event-fed projections.
package entity

import (
	"github.com/rise-and-shine/dddbase/cqrs/command"
	"github.com/rise-and-shine/dddbase/cqrs/event"
)

// CommandSubscriber is satisfied by *command.Dispatcher.
type CommandSubscriber interface {
	Subscribe(name string, h command.Handler, opts ...command.SubscribeOption)
}

// EventSubscriber is satisfied by *event.Dispatcher.
type EventSubscriber interface {
	Subscribe(name string, h event.Handler)
}

// NewEvent returns an event named name carrying payload, stamped with the current time.
func NewEvent(name string, payload event.Payload) event.Event {
	return event.New(name, payload)
}
