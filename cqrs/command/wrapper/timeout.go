package wrapper

import (
	"context"
	"time"

	"github.com/rise-and-shine/dddbase/cqrs/command"
	"github.com/rise-and-shine/dddbase/cqrs/event"
)

type timeoutWrapper struct {
	command.Handler
	timeout time.Duration
}

// NewTimeout bounds the context handed to Execute.
func NewTimeout(timeout time.Duration) command.WrapFunc {
	return func(next command.Handler) command.Handler {
		return &timeoutWrapper{Handler: next, timeout: timeout}
	}
}

func (w *timeoutWrapper) Execute(ctx context.Context, cmd command.Command) ([]event.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	return w.Handler.Execute(ctx, cmd)
}
