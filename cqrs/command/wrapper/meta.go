package wrapper

import (
	"context"

	"github.com/rise-and-shine/dddbase/cqrs/command"
	"github.com/rise-and-shine/dddbase/cqrs/event"
	"github.com/rise-and-shine/dddbase/meta"
	"github.com/rise-and-shine/dddbase/observability/tracing"
)

type metaInjectWrapper struct {
	command.Handler
	serviceName    string
	serviceVersion string
}

// NewMetaInject adds the trace id and service identity to the execution context.
func NewMetaInject(serviceName, serviceVersion string) command.WrapFunc {
	return func(next command.Handler) command.Handler {
		return &metaInjectWrapper{Handler: next, serviceName: serviceName, serviceVersion: serviceVersion}
	}
}

func (w *metaInjectWrapper) Execute(ctx context.Context, cmd command.Command) ([]event.Event, error) {
	if _, err := meta.ShouldGetMeta(ctx, meta.TraceID); err != nil {
		ctx = meta.InjectMetaToContext(ctx, map[meta.ContextKey]string{
			meta.TraceID: tracing.GetStartingTraceID(ctx),
		})
	}
	ctx = meta.InjectMetaToContext(ctx, map[meta.ContextKey]string{
		meta.ServiceKey: w.serviceName,
		meta.VersionKey: w.serviceVersion,
	})

	return w.Handler.Execute(ctx, cmd)
}
