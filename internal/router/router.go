package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/climb-review-api/internal/config"
	"github.com/noah-isme/climb-review-api/internal/handler"
	"github.com/noah-isme/climb-review-api/internal/middleware"
	"github.com/noah-isme/climb-review-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ReviewHandler       *handler.ReviewHandler
	ChainHandler        *handler.ChainHandler
	NotificationHandler *handler.NotificationHandler
	HealthChecks        map[string]handler.Pinger
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = middleware.JWTProtected(cfg.JWTSecret)
	}

	if deps.ReviewHandler != nil {
		deps.ReviewHandler.Register(api.Group("/reviews", jwtMiddleware))
	}

	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(api.Group("/notifications", jwtMiddleware))
	}

	// Chain generation and sweeps are reserved for the activity service and operators.
	if deps.ChainHandler != nil {
		internal := app.Group("/api/internal/chains", jwtMiddleware, middleware.RequireRole(middleware.RoleAdmin, middleware.RoleSystem))
		deps.ChainHandler.Register(internal)
	}
}
