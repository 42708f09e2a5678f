package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/complaint-desk/internal/repository"
)

const readinessTimeout = 2 * time.Second

type dependencyCheck struct {
	name string
	// optional checks report "disabled" instead of failing readiness.
	ping func(ctx context.Context) error
}

// HealthHandler exposes liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	checks      []dependencyCheck
}

// NewHealthHandler returns a new handler instance. redis may be nil.
func NewHealthHandler(serviceName, version string, store repository.Store, redis *redis.Client) *HealthHandler {
	checks := []dependencyCheck{{name: "store", ping: store.Ping}}
	if redis != nil {
		checks = append(checks, dependencyCheck{name: "redis", ping: func(ctx context.Context) error {
			return redis.Ping(ctx).Err()
		}})
	} else {
		checks = append(checks, dependencyCheck{name: "redis"})
	}
	return &HealthHandler{serviceName: serviceName, version: version, checks: checks}
}

// Live GET /health/live.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready GET /health/ready. Every configured dependency must answer a ping.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	dependencies := fiber.Map{}
	ready := true
	for _, check := range h.checks {
		if check.ping == nil {
			dependencies[check.name] = "disabled"
			continue
		}
		if err := check.ping(ctx); err != nil {
			dependencies[check.name] = err.Error()
			ready = false
			continue
		}
		dependencies[check.name] = "ok"
	}

	if !ready {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "DEPENDENCY_UNAVAILABLE",
				"message": "one or more dependencies unavailable",
				"details": dependencies,
			},
		})
	}
	return c.JSON(fiber.Map{"status": "ready", "dependencies": dependencies})
}
