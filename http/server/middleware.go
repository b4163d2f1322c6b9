package server

import (
	"slices"

	"github.com/gofiber/fiber/v2"
)

// Middleware is a fiber handler installed ahead of the routes. The one with
// the highest Priority runs first on the way in.
type Middleware struct {
	Priority int
	Handler  fiber.Handler
}

// applyMiddlewares installs middlewares by descending Priority. Equal
// priorities keep their order; nil handlers are skipped.
func applyMiddlewares(app *fiber.App, middlewares []Middleware) {
	ordered := slices.Clone(middlewares)
	slices.SortStableFunc(ordered, func(a, b Middleware) int {
		return b.Priority - a.Priority
	})

	for _, mw := range ordered {
		if mw.Handler != nil {
			app.Use(mw.Handler)
		}
	}
}
