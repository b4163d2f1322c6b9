package wrapper

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/rise-and-shine/dddbase/cqrs/command"
	"github.com/rise-and-shine/dddbase/cqrs/event"
	"github.com/rise-and-shine/dddbase/observability/tracing"
)

type tracingWrapper struct {
	command.Handler
	tracer trace.Tracer
}

// NewTracing opens a span around every execution.
func NewTracing() command.WrapFunc {
	return func(next command.Handler) command.Handler {
		return &tracingWrapper{Handler: next, tracer: otel.Tracer("cqrs/command")}
	}
}

func (w *tracingWrapper) Execute(ctx context.Context, cmd command.Command) ([]event.Event, error) {
	ctx, span := w.tracer.Start(ctx, "command.execute "+cmd.Name)
	events, err := w.Handler.Execute(ctx, cmd)
	tracing.EndSpan(span, err)
	return events, err
}
