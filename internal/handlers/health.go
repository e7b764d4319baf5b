package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"autopilot/internal/database"
	"autopilot/internal/services"
)

// HealthHandler reports service liveness and dependency health.
type HealthHandler struct {
	db    *database.MongoDB
	redis *services.RedisService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *database.MongoDB, redis *services.RedisService) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

// Health handles GET /health.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := fiber.StatusOK
	checks := fiber.Map{"mongodb": "ok", "redis": "ok"}

	if err := h.db.Ping(ctx); err != nil {
		checks["mongodb"] = "down"
		status = fiber.StatusServiceUnavailable
	}
	if err := h.redis.Ping(ctx); err != nil {
		checks["redis"] = "down"
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(fiber.Map{
		"status": map[bool]string{true: "ok", false: "degraded"}[status == fiber.StatusOK],
		"checks": checks,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
