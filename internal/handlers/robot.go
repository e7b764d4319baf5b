package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"autopilot/internal/services"
)

// RobotHandler serves the public robot catalog.
type RobotHandler struct {
	robots *services.RobotService
}

// NewRobotHandler creates a new robot handler
func NewRobotHandler(robots *services.RobotService) *RobotHandler {
	return &RobotHandler{robots: robots}
}

// List handles GET /api/robots with optional filters and semantic search.
func (h *RobotHandler) List(c *fiber.Ctx) error {
	filter := services.RobotFilter{
		Category: c.Query("category"),
		Surface:  c.Query("surface"),
		Mode:     c.Query("mode"),
		Query:    c.Query("q"),
	}
	if raw := c.Query("max_lease_cents"); raw != "" {
		if maxLease, err := strconv.ParseInt(raw, 10, 64); err == nil && maxLease > 0 {
			filter.MaxLease = maxLease
		}
	}

	robots, err := h.robots.List(c.UserContext(), filter)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"robots": robots})
}

// FilterOptions handles GET /api/robots/filters.
func (h *RobotHandler) FilterOptions(c *fiber.Ctx) error {
	opts, err := h.robots.FilterOptions(c.UserContext())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(opts)
}

// Get handles GET /api/robots/:id.
func (h *RobotHandler) Get(c *fiber.Ctx) error {
	robot, err := h.robots.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(robot)
}
