package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rise-and-shine/dddbase/http/server"
	"github.com/rise-and-shine/dddbase/meta"
	"github.com/rise-and-shine/dddbase/observability/tracing"
)

// HeaderSagaID lets a caller attach a command to an existing saga.
const HeaderSagaID = "X-Saga-ID"

// NewMetaInjectMW injects trace, service and saga metadata into the request
// context.
func NewMetaInjectMW(serviceName, serviceVersion string) server.Middleware {
	return server.Middleware{
		Priority: 700,
		Handler: func(c *fiber.Ctx) error {
			ctx := c.UserContext()

			traceID, _ := ctx.Value(meta.TraceID).(string)
			if traceID == "" {
				traceID = tracing.GetStartingTraceID(ctx)
			}

			ctx = meta.InjectMetaToContext(ctx, map[meta.ContextKey]string{
				meta.TraceID:    traceID,
				meta.ServiceKey: serviceName,
				meta.VersionKey: serviceVersion,
				meta.SagaID:     c.Get(HeaderSagaID),
			})
			c.SetUserContext(ctx)

			return c.Next()
		},
	}
}
