package handlers

import (
	"github.com/gofiber/fiber/v2"

	"autopilot/internal/services"
)

// CheckoutHandler serves checkout session creation and order reads.
type CheckoutHandler struct {
	checkout *services.CheckoutService
	profiles *services.ProfileService
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkout *services.CheckoutService, profiles *services.ProfileService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, profiles: profiles}
}

// CreateSession handles POST /api/checkout/session.
func (h *CheckoutHandler) CreateSession(c *fiber.Ctx) error {
	owner, err := ownerFromContext(c, h.profiles)
	if err != nil {
		return mapServiceError(c, err)
	}

	var req services.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
	}
	if req.RobotID == "" {
		return respondError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "robot_id is required")
	}

	order, err := h.checkout.CreateCheckoutSession(c.UserContext(), owner, req)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// ListOrders handles GET /api/orders.
func (h *CheckoutHandler) ListOrders(c *fiber.Ctx) error {
	owner, err := ownerFromContext(c, h.profiles)
	if err != nil {
		return mapServiceError(c, err)
	}

	orders, err := h.checkout.ListOrders(c.UserContext(), owner)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"orders": orders})
}

// GetOrder handles GET /api/orders/:id.
func (h *CheckoutHandler) GetOrder(c *fiber.Ctx) error {
	owner, err := ownerFromContext(c, h.profiles)
	if err != nil {
		return mapServiceError(c, err)
	}

	order, err := h.checkout.GetOrder(c.UserContext(), c.Params("id"), owner)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(order)
}
