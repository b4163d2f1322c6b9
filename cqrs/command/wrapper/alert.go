package wrapper

import (
	"context"
	"time"

	"github.com/code19m/errx"

	"github.com/rise-and-shine/dddbase/cqrs/command"
	"github.com/rise-and-shine/dddbase/cqrs/event"
	"github.com/rise-and-shine/dddbase/meta"
	"github.com/rise-and-shine/dddbase/observability/alert"
	"github.com/rise-and-shine/dddbase/observability/logger"
)

const alertTimeout = 3 * time.Second

type alertWrapper struct {
	command.Handler
	logger        logger.Logger
	alertProvider alert.Provider
}

// NewAlert sends an alert for every internal error returned by Execute.
// Validation, conflict and not-found errors are the caller's problem and are
// not reported.
func NewAlert(log logger.Logger, alertProvider alert.Provider) command.WrapFunc {
	return func(next command.Handler) command.Handler {
		return &alertWrapper{
			Handler:       next,
			logger:        log.Named("cqrs.command.alerting"),
			alertProvider: alertProvider,
		}
	}
}

func (w *alertWrapper) Execute(ctx context.Context, cmd command.Command) ([]event.Event, error) {
	events, err := w.Handler.Execute(ctx, cmd)
	if err == nil || errx.GetType(err) != errx.T_Internal {
		return events, err
	}

	e := errx.AsErrorX(err)
	details := make(map[string]string)
	for k, v := range meta.ExtractMetaFromContext(ctx) {
		details[string(k)] = v
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
	go func() {
		defer cancel()

		sendErr := w.alertProvider.SendError(sendCtx, e.Code(), err.Error(), "command: "+cmd.Name, details)
		if sendErr != nil {
			w.logger.With("alert_send_error", sendErr).Warn("failed to send error alert")
		}
	}()

	return events, err
}
