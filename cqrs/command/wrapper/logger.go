package wrapper

import (
	"context"
	"time"

	"github.com/rise-and-shine/dddbase/cqrs/command"
	"github.com/rise-and-shine/dddbase/cqrs/event"
	"github.com/rise-and-shine/dddbase/observability/logger"
)

type loggerWrapper struct {
	command.Handler
	logger logger.Logger
}

// NewLogger logs every execution with its duration, payload and outcome.
func NewLogger(log logger.Logger) command.WrapFunc {
	return func(next command.Handler) command.Handler {
		return &loggerWrapper{Handler: next, logger: log.Named("cqrs.command.logger")}
	}
}

func (w *loggerWrapper) Execute(ctx context.Context, cmd command.Command) ([]event.Event, error) {
	start := time.Now()

	events, err := w.Handler.Execute(ctx, cmd)

	log := w.logger.
		WithContext(ctx).
		With("execution_time", time.Since(start).String()).
		With("payload", cmd.Payload)

	if err != nil {
		log.Errorx(err)
		return events, err
	}

	log.With("events", len(events)).Info("command executed")
	return events, nil
}
