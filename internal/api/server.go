package api

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"

	"github.com/twilio-labs/bulk-sms-tool/internal/api/handlers"
	"github.com/twilio-labs/bulk-sms-tool/internal/api/middleware"
	"github.com/twilio-labs/bulk-sms-tool/internal/config"
)

// Server wraps the Fiber application.
type Server struct {
	app      *fiber.App
	cfg      *config.Config
	handlers *handlers.HandlerSet
}

// NewServer constructs the HTTP server. The rate limiter guards every /api
// route; limiter may be nil when Redis is not configured.
func NewServer(cfg *config.Config, hs *handlers.HandlerSet, limiter *middleware.RateLimiter) *Server {
	fiberCfg := fiber.Config{
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		ErrorHandler: hs.ErrorHandler,
	}

	app := fiber.New(fiberCfg)
	app.Use(otelfiber.Middleware())
	if limiter != nil {
		app.Use("/api", limiter.Handle)
	}
	hs.Register(app)

	return &Server{app: app, cfg: cfg, handlers: hs}
}

// Start begins serving HTTP traffic.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.HTTP.Port)
	go func() {
		<-ctx.Done()
		_ = s.Shutdown()
	}()
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the fiber app, for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
