package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"autopilot/internal/middleware"
	"autopilot/internal/services"
)

// respondError writes the stable {code, message} error body.
func respondError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"code":    code,
		"message": message,
	})
}

// mapServiceError translates service sentinels into HTTP responses.
func mapServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		return respondError(c, fiber.StatusNotFound, "NOT_FOUND", "Session not found")
	case errors.Is(err, services.ErrSessionClaimed):
		return respondError(c, fiber.StatusConflict, "ALREADY_CLAIMED", "Session has already been claimed")
	case errors.Is(err, services.ErrSessionExpired):
		return respondError(c, fiber.StatusConflict, "SESSION_EXPIRED", "Session has expired")
	case errors.Is(err, services.ErrConversationNotFound):
		return respondError(c, fiber.StatusNotFound, "NOT_FOUND", "Conversation not found")
	case errors.Is(err, services.ErrRobotNotFound):
		return respondError(c, fiber.StatusNotFound, "NOT_FOUND", "Robot not found")
	case errors.Is(err, services.ErrOrderNotFound):
		return respondError(c, fiber.StatusNotFound, "NOT_FOUND", "Order not found")
	case errors.Is(err, services.ErrProfileNotFound):
		return respondError(c, fiber.StatusNotFound, "NOT_FOUND", "Profile not found")
	case errors.Is(err, services.ErrProductUnavailable):
		return respondError(c, fiber.StatusConflict, "PRODUCT_UNAVAILABLE", "This robot is not available for checkout")
	case errors.Is(err, services.ErrInvalidOwner), errors.Is(err, services.ErrROIInputs):
		return respondError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	default:
		return respondError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
	}
}

// ownerFromContext resolves the request identity into a storage owner. For
// authenticated callers the profile row is created on first sight so the
// owner always references a real profile ID.
func ownerFromContext(c *fiber.Ctx, profiles *services.ProfileService) (services.Owner, error) {
	if userID, ok := middleware.UserIDFromLocals(c); ok {
		email, _ := c.Locals(middleware.LocalsUserEmail).(string)
		profile, err := profiles.EnsureProfile(c.UserContext(), userID, email)
		if err != nil {
			return services.Owner{}, err
		}
		return services.Owner{ProfileID: profile.ID}, nil
	}
	if session, ok := middleware.SessionFromLocals(c); ok {
		return services.Owner{SessionID: session.ID}, nil
	}
	return services.Owner{}, services.ErrInvalidOwner
}
