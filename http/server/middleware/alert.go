package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"

	"github.com/rise-and-shine/dddbase/cqrs/saga"
	"github.com/rise-and-shine/dddbase/http/server"
	"github.com/rise-and-shine/dddbase/meta"
	"github.com/rise-and-shine/dddbase/observability/alert"
	"github.com/rise-and-shine/dddbase/observability/logger"
)

const alertSendTimeout = 3 * time.Second

// NewAlertingMW sends an alert through the global alert provider for every
// request failing with an internal error.
func NewAlertingMW(log logger.Logger) server.Middleware {
	log = log.Named("http.alerting")

	return server.Middleware{
		Priority: 600,
		Handler: func(c *fiber.Ctx) error {
			err := c.Next()
			if err == nil || saga.TypeOf(err) != errx.T_Internal {
				return err
			}

			ctx := c.UserContext()
			e := errx.AsErrorX(err)
			operation := fmt.Sprintf("%s %s", c.Method(), c.Route().Path)

			details := map[string]string{"error_trace": e.Trace()}
			for k, v := range meta.ExtractMetaFromContext(ctx) {
				details[string(k)] = v
			}

			sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertSendTimeout)
			go func() {
				defer cancel()

				sendErr := alert.SendError(sendCtx, e.Code(), err.Error(), operation, details)
				if sendErr != nil {
					log.WithContext(ctx).With("alert_send_error", sendErr.Error()).Warn("failed to send alert")
				}
			}()

			return err
		},
	}
}
