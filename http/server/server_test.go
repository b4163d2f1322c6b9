package server_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/dddbase/http/server"
)

func trail(mark string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Append("X-Trail", mark)
		return c.Next()
	}
}

func TestMiddlewaresRunByPriority(t *testing.T) {
	srv := server.NewHTTPServer(server.Config{}, []server.Middleware{
		{Priority: 500, Handler: trail("logger")},
		{Priority: 1000, Handler: trail("recovery")},
		{Priority: 700, Handler: nil},
		{Priority: 700, Handler: trail("meta")},
		{Priority: 700, Handler: trail("meta-2")},
	})
	srv.RegisterRouter(func(r fiber.Router) {
		r.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })
	})

	resp, err := srv.App().Test(httptest.NewRequest(fiber.MethodGet, "/ping", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t,
		"recovery, meta, meta-2, logger",
		strings.Join(resp.Header.Values("X-Trail"), ", "),
	)
}
