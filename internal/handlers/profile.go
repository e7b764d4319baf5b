package handlers

import (
	"github.com/gofiber/fiber/v2"

	"autopilot/internal/middleware"
	"autopilot/internal/services"
)

// ProfileHandler serves the authenticated profile read.
type ProfileHandler struct {
	profiles *services.ProfileService
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profiles *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// GetMe handles GET /api/profiles/me.
func (h *ProfileHandler) GetMe(c *fiber.Ctx) error {
	userID, ok := middleware.UserIDFromLocals(c)
	if !ok {
		return respondError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
	}

	email, _ := c.Locals(middleware.LocalsUserEmail).(string)
	profile, err := h.profiles.EnsureProfile(c.UserContext(), userID, email)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(profile)
}
