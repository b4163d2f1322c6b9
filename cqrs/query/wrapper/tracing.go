// Package wrapper holds query.Query decorators.
package wrapper

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/rise-and-shine/dddbase/cqrs/query"
	"github.com/rise-and-shine/dddbase/observability/tracing"
)

type tracingWrapper[I query.Input, R query.Result] struct {
	tracer   trace.Tracer
	spanName string
	next     query.Query[I, R]
}

// NewTracing opens a span named "query.execute <name>" around every execution.
func NewTracing[I query.Input, R query.Result](name string) query.WrapFunc[I, R] {
	return func(next query.Query[I, R]) query.Query[I, R] {
		return &tracingWrapper[I, R]{
			tracer:   otel.Tracer("cqrs/query"),
			spanName: "query.execute " + name,
			next:     next,
		}
	}
}

func (w *tracingWrapper[I, R]) Execute(ctx context.Context, input I) (R, error) {
	ctx, span := w.tracer.Start(ctx, w.spanName)
	result, err := w.next.Execute(ctx, input)
	tracing.EndSpan(span, err)
	return result, err
}
