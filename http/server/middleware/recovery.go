package middleware

import (
	"runtime"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"

	"github.com/rise-and-shine/dddbase/http/server"
	"github.com/rise-and-shine/dddbase/observability/logger"
)

// CodePanicRecovered is the code of errors built from recovered panics.
const CodePanicRecovered = "PANIC_RECOVERED"

// NewRecoveryMW turns panics in the handler chain into internal errors.
func NewRecoveryMW(log logger.Logger) server.Middleware {
	log = log.Named("http.recovery")

	return server.Middleware{
		Priority: 1000,
		Handler: func(c *fiber.Ctx) (err error) {
			defer func() {
				if r := recover(); r != nil {
					stackTrace := make([]byte, 4096) //nolint: mnd // 4KB
					stackTrace = stackTrace[:runtime.Stack(stackTrace, false)]

					log.WithContext(c.UserContext()).
						With("stack_trace", string(stackTrace)).
						With("panic_message", r).
						Error("recovered from panic")

					err = errx.New("panic recovered",
						errx.WithCode(CodePanicRecovered),
						errx.WithDetails(errx.D{
							"stack_trace":   string(stackTrace),
							"panic_message": r,
						}),
					)
				}
			}()

			return c.Next()
		},
	}
}
