package handlers

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"autopilot/internal/services"
)

// ConversationHandler serves conversation CRUD and the chat endpoint.
type ConversationHandler struct {
	conversations *services.ConversationService
	agent         *services.AgentService
	sessions      *services.SessionService
	profiles      *services.ProfileService
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(conversations *services.ConversationService, agent *services.AgentService, sessions *services.SessionService, profiles *services.ProfileService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, agent: agent, sessions: sessions, profiles: profiles}
}

type createConversationRequest struct {
	Title string `json:"title"`
}

// Create handles POST /api/conversations. Session-owned conversations are
// linked back onto the session row so the claim can report the transfer.
func (h *ConversationHandler) Create(c *fiber.Ctx) error {
	owner, err := ownerFromContext(c, h.profiles)
	if err != nil {
		return mapServiceError(c, err)
	}

	var req createConversationRequest
	_ = c.BodyParser(&req)

	conv, err := h.conversations.Create(c.UserContext(), owner, strings.TrimSpace(req.Title))
	if err != nil {
		return mapServiceError(c, err)
	}

	if owner.SessionID != "" {
		if err := h.sessions.SetConversationID(c.UserContext(), owner.SessionID, conv.ID); err != nil {
			log.Printf("⚠️  Failed to link conversation %s to session %s: %v", conv.ID, owner.SessionID, err)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(conv)
}

// List handles GET /api/conversations.
func (h *ConversationHandler) List(c *fiber.Ctx) error {
	owner, err := ownerFromContext(c, h.profiles)
	if err != nil {
		return mapServiceError(c, err)
	}

	conversations, err := h.conversations.List(c.UserContext(), owner)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"conversations": conversations})
}

// Get handles GET /api/conversations/:id.
func (h *ConversationHandler) Get(c *fiber.Ctx) error {
	owner, err := ownerFromContext(c, h.profiles)
	if err != nil {
		return mapServiceError(c, err)
	}

	conv, err := h.conversations.Get(c.UserContext(), c.Params("id"), owner)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(conv)
}

// Delete handles DELETE /api/conversations/:id.
func (h *ConversationHandler) Delete(c *fiber.Ctx) error {
	owner, err := ownerFromContext(c, h.profiles)
	if err != nil {
		return mapServiceError(c, err)
	}

	if err := h.conversations.Delete(c.UserContext(), c.Params("id"), owner); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Conversation deleted"})
}

// Messages handles GET /api/conversations/:id/messages.
func (h *ConversationHandler) Messages(c *fiber.Ctx) error {
	owner, err := ownerFromContext(c, h.profiles)
	if err != nil {
		return mapServiceError(c, err)
	}

	messages, err := h.conversations.Messages(c.UserContext(), c.Params("id"), owner)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"messages": messages})
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessage handles POST /api/conversations/:id/messages: store the user
// message, generate the reply, run best-effort extraction.
func (h *ConversationHandler) SendMessage(c *fiber.Ctx) error {
	owner, err := ownerFromContext(c, h.profiles)
	if err != nil {
		return mapServiceError(c, err)
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return respondError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "Message content is required")
	}
	if len(content) > 8000 {
		return respondError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "Message content too long")
	}

	resp, err := h.agent.SendMessage(c.UserContext(), c.Params("id"), owner, content)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(resp)
}
