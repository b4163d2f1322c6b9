package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rise-and-shine/dddbase/http/server"
)

// NewErrorHandlerMW converts handler errors to standardized JSON responses.
// When hideDetails is false, error trace and details are included.
func NewErrorHandlerMW(hideDetails bool) server.Middleware {
	return server.Middleware{
		Priority: 400,
		Handler: func(c *fiber.Ctx) error {
			err := c.Next()
			if err == nil {
				return nil
			}

			if c.Response() != nil && c.Response().StatusCode() >= fiber.StatusBadRequest {
				return err
			}

			return server.WriteErrorResponse(c, err, hideDetails)
		},
	}
}
