package event

import "context"

// Handler reacts to published events. Events it returns are published through
// the same dispatcher on live delivery and ignored during replay.
type Handler interface {
	Apply(ctx context.Context, e Event) ([]Event, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, e Event) ([]Event, error)

// Apply implements Handler.
func (f HandlerFunc) Apply(ctx context.Context, e Event) ([]Event, error) {
	return f(ctx, e)
}
