// Package wrapper provides command.Handler decorators for cross-cutting
// concerns: logging, panic recovery, tracing, timeouts, metadata and alerting.
// Decorators only wrap Execute; AffectedEntities is passed through untouched so
// the dispatcher's version check sees the same entities.
package wrapper

import (
	"time"

	"github.com/rise-and-shine/dddbase/cqrs/command"
	"github.com/rise-and-shine/dddbase/observability/alert"
	"github.com/rise-and-shine/dddbase/observability/logger"
)

// Default returns the wrappers every handler registered by the runner gets,
// outermost first. A positive commandTimeout bounds each Execute.
func Default(
	log logger.Logger,
	alertProvider alert.Provider,
	serviceName, serviceVersion string,
	commandTimeout time.Duration,
) []command.WrapFunc {
	wrappers := []command.WrapFunc{
		NewMetaInject(serviceName, serviceVersion),
		NewTracing(),
		NewLogger(log),
		NewAlert(log, alertProvider),
	}
	if commandTimeout > 0 {
		wrappers = append(wrappers, NewTimeout(commandTimeout))
	}
	return append(wrappers, NewRecovery(log))
}
