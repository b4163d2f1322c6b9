package wrapper

import (
	"context"
	"fmt"
	"runtime"

	"github.com/code19m/errx"

	"github.com/rise-and-shine/dddbase/cqrs/command"
	"github.com/rise-and-shine/dddbase/cqrs/event"
	"github.com/rise-and-shine/dddbase/observability/logger"
)

// CodePanicRecovered is returned when a handler panics.
const CodePanicRecovered = "PANIC_RECOVERED"

const stackSize = 4096

type recoveryWrapper struct {
	command.Handler
	logger logger.Logger
}

// NewRecovery turns handler panics into errors.
func NewRecovery(log logger.Logger) command.WrapFunc {
	return func(next command.Handler) command.Handler {
		return &recoveryWrapper{Handler: next, logger: log.Named("cqrs.command.recovery")}
	}
}

func (w *recoveryWrapper) Execute(ctx context.Context, cmd command.Command) (events []event.Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			stackTrace := make([]byte, stackSize)
			stackTrace = stackTrace[:runtime.Stack(stackTrace, false)]

			err = errx.New("panic recovered while executing "+cmd.Name,
				errx.WithCode(CodePanicRecovered),
				errx.WithDetails(errx.D{
					"stack_trace":  string(stackTrace),
					"panic_values": fmt.Sprintf("%v", r),
				}),
			)
			events = nil
			w.logger.WithContext(ctx).Errorx(err)
		}
	}()

	return w.Handler.Execute(ctx, cmd)
}
