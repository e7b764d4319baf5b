package handlers

import (
	"github.com/gofiber/fiber/v2"

	"autopilot/internal/middleware"
	"autopilot/internal/models"
	"autopilot/internal/services"
)

// DiscoveryHandler serves the authenticated discovery profile endpoints.
type DiscoveryHandler struct {
	discovery *services.DiscoveryService
	profiles  *services.ProfileService
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(discovery *services.DiscoveryService, profiles *services.ProfileService) *DiscoveryHandler {
	return &DiscoveryHandler{discovery: discovery, profiles: profiles}
}

func (h *DiscoveryHandler) profileID(c *fiber.Ctx) (string, error) {
	userID, _ := middleware.UserIDFromLocals(c)
	email, _ := c.Locals(middleware.LocalsUserEmail).(string)
	profile, err := h.profiles.EnsureProfile(c.UserContext(), userID, email)
	if err != nil {
		return "", err
	}
	return profile.ID, nil
}

// Get handles GET /api/discovery, creating an empty profile on first read.
func (h *DiscoveryHandler) Get(c *fiber.Ctx) error {
	profileID, err := h.profileID(c)
	if err != nil {
		return mapServiceError(c, err)
	}

	profile, err := h.discovery.GetOrCreate(c.UserContext(), profileID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(profile)
}

// Update handles PUT /api/discovery with a partial patch.
func (h *DiscoveryHandler) Update(c *fiber.Ctx) error {
	profileID, err := h.profileID(c)
	if err != nil {
		return mapServiceError(c, err)
	}

	var update models.DiscoveryProfileUpdate
	if err := c.BodyParser(&update); err != nil {
		return respondError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
	}
	if update.Phase != nil && !models.IsValidPhase(*update.Phase) {
		return respondError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "Unknown phase")
	}

	updated, err := h.discovery.Update(c.UserContext(), profileID, &update)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(updated)
}
