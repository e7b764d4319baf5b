package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"autopilot/internal/services"
)

// WebhookHandler receives Stripe webhook deliveries.
type WebhookHandler struct {
	checkout *services.CheckoutService
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(checkout *services.CheckoutService) *WebhookHandler {
	return &WebhookHandler{checkout: checkout}
}

// HandleStripe handles POST /api/webhooks/stripe. Invalid signatures get a
// 400; processing errors get a 500 so Stripe retries; duplicates succeed.
func (h *WebhookHandler) HandleStripe(c *fiber.Ctx) error {
	event, err := h.checkout.VerifyWebhook(c.Body(), c.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, services.ErrInvalidSignature) {
			log.Printf("❌ Webhook signature verification failed: %v", err)
			return respondError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "Invalid webhook signature")
		}
		return mapServiceError(c, err)
	}

	if err := h.checkout.HandleWebhookEvent(c.UserContext(), event); err != nil {
		log.Printf("❌ Webhook processing failed for event %s: %v", event.ID, err)
		return respondError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Webhook processing failed")
	}

	return c.JSON(fiber.Map{"received": true})
}
