// Package middleware provides the fiber middlewares of the HTTP front-end.
//
// Each middleware declares a priority; higher values run earlier:
//
//   - Recovery (1000)
//   - Tracing (900)
//   - Timeout (800)
//   - MetaInject (700)
//   - Alerting (600)
//   - Logger (500)
//   - ErrorHandler (400)
//
// Default returns the full chain.
package middleware

import (
	"time"

	"github.com/rise-and-shine/dddbase/http/server"
	"github.com/rise-and-shine/dddbase/observability/logger"
)

// Default returns every middleware of this package configured for a service.
func Default(log logger.Logger, cfg server.Config, serviceName, serviceVersion string) []server.Middleware {
	return []server.Middleware{
		NewRecoveryMW(log),
		NewTracingMW(),
		NewTimeoutMW(orDefault(cfg.HandleTimeout, 10*time.Second)),
		NewMetaInjectMW(serviceName, serviceVersion),
		NewAlertingMW(log),
		NewLoggerMW(log),
		NewErrorHandlerMW(cfg.HideErrorDetails),
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
