// Package server provides the fiber based HTTP server fronting the command
// dispatcher and read models.
package server

import (
	"github.com/gofiber/fiber/v2"
)

// HTTPServer is a fiber app with prioritized middleware registration.
type HTTPServer struct {
	cfg        Config
	router     *fiber.App
	listenAddr string
}

// NewHTTPServer creates a server applying middlewares in descending priority.
func NewHTTPServer(cfg Config, middlewares []Middleware) *HTTPServer {
	router := fiber.New(fiber.Config{
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		IdleTimeout:           cfg.IdleTimeout,
		ErrorHandler:          customErrorHandler(cfg.HideErrorDetails),
		DisableStartupMessage: true,
		Immutable:             true,
		BodyLimit:             cfg.BodyLimit,
	})

	applyMiddlewares(router, middlewares)

	return &HTTPServer{
		cfg:        cfg,
		router:     router,
		listenAddr: cfg.Address(),
	}
}

// RegisterRouter registers routes through registerFunc.
func (s *HTTPServer) RegisterRouter(registerFunc func(r fiber.Router)) {
	registerFunc(s.router)
}

// App exposes the underlying fiber app, mostly for tests.
func (s *HTTPServer) App() *fiber.App {
	return s.router
}

// Start listens on the configured address. It blocks until Stop.
func (s *HTTPServer) Start() error {
	return s.router.Listen(s.listenAddr)
}

// Stop gracefully stops the server, letting in-flight requests complete.
func (s *HTTPServer) Stop() error {
	return s.router.Shutdown()
}
