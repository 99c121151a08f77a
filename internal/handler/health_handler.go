package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/climb-review-api/internal/config"
	"github.com/noah-isme/climb-review-api/internal/utils"
)

// Pinger is satisfied by *sql.DB and any dependency able to report reachability.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Service     string            `json:"service"`
	Environment string            `json:"environment"`
	Checks      map[string]string `json:"checks,omitempty"`
}

// HealthCheck returns a handler that reports application health and the reachability of
// the given dependencies. Any failing dependency turns the response into a 503.
func HealthCheck(cfg config.Config, dependencies map[string]Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}

		if len(dependencies) > 0 {
			ctx, cancel := context.WithTimeout(requestContext(c), 2*time.Second)
			defer cancel()

			payload.Checks = make(map[string]string, len(dependencies))
			for name, dependency := range dependencies {
				if err := dependency.PingContext(ctx); err != nil {
					payload.Checks[name] = "unavailable"
					payload.Status = "degraded"
					continue
				}
				payload.Checks[name] = "ok"
			}
		}

		if payload.Status != "ok" {
			return utils.SendSuccessWithStatus(c, fiber.StatusServiceUnavailable, "service degraded", payload)
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
