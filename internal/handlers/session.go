package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"autopilot/internal/config"
	"autopilot/internal/middleware"
	"autopilot/internal/models"
	"autopilot/internal/services"
)

// SessionHandler serves the anonymous session endpoints and the claim.
type SessionHandler struct {
	sessions *services.SessionService
	profiles *services.ProfileService
	metrics  *services.Metrics
	cfg      *config.Config
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *services.SessionService, profiles *services.ProfileService, metrics *services.Metrics, cfg *config.Config) *SessionHandler {
	return &SessionHandler{sessions: sessions, profiles: profiles, metrics: metrics, cfg: cfg}
}

// Create handles POST /api/sessions. A caller that already holds a valid
// session gets it back instead of a fresh one.
func (h *SessionHandler) Create(c *fiber.Ctx) error {
	if token := c.Get(middleware.SessionTokenHeader); token != "" {
		if existing, err := h.sessions.GetByToken(c.UserContext(), token); err == nil && existing.IsValid(time.Now()) {
			middleware.SetSessionCookie(c, h.cfg, existing.SessionToken)
			c.Set(middleware.SessionTokenHeader, existing.SessionToken)
			return c.JSON(existing)
		}
	} else if token := c.Cookies(h.cfg.SessionCookieName); token != "" {
		if existing, err := h.sessions.GetByToken(c.UserContext(), token); err == nil && existing.IsValid(time.Now()) {
			return c.JSON(existing)
		}
	}

	session, err := h.sessions.Create(c.UserContext())
	if err != nil {
		return mapServiceError(c, err)
	}

	if h.metrics != nil {
		h.metrics.RecordSessionCreated()
	}
	middleware.SetSessionCookie(c, h.cfg, session.SessionToken)
	c.Set(middleware.SessionTokenHeader, session.SessionToken)
	return c.Status(fiber.StatusCreated).JSON(session)
}

// GetMe handles GET /api/sessions/me (session-only).
func (h *SessionHandler) GetMe(c *fiber.Ctx) error {
	session, ok := middleware.SessionFromLocals(c)
	if !ok {
		return respondError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Session required")
	}
	return c.JSON(session)
}

// UpdateMe handles PUT /api/sessions/me (session-only, partial patch).
func (h *SessionHandler) UpdateMe(c *fiber.Ctx) error {
	session, ok := middleware.SessionFromLocals(c)
	if !ok {
		return respondError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Session required")
	}

	var update models.SessionUpdate
	if err := c.BodyParser(&update); err != nil {
		return respondError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
	}
	if update.Phase != nil && !models.IsValidPhase(*update.Phase) {
		return respondError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "Unknown phase")
	}

	updated, err := h.sessions.Update(c.UserContext(), session.ID, &update)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(updated)
}

type claimRequest struct {
	SessionToken string `json:"session_token"`
}

// Claim handles POST /api/sessions/claim. The caller must be authenticated;
// the session token comes from the body, the header, or the cookie, in that
// order. On success the session cookie is cleared.
func (h *SessionHandler) Claim(c *fiber.Ctx) error {
	userID, ok := middleware.UserIDFromLocals(c)
	if !ok {
		return respondError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
	}

	var req claimRequest
	// Body is optional; header/cookie carry the token otherwise
	_ = c.BodyParser(&req)

	token := req.SessionToken
	if token == "" {
		token = c.Get(middleware.SessionTokenHeader)
	}
	if token == "" {
		token = c.Cookies(h.cfg.SessionCookieName)
	}
	if token == "" {
		return respondError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "No session token to claim")
	}

	email, _ := c.Locals(middleware.LocalsUserEmail).(string)
	profile, err := h.profiles.EnsureProfile(c.UserContext(), userID, email)
	if err != nil {
		return mapServiceError(c, err)
	}

	result, err := h.sessions.Claim(c.UserContext(), token, profile.ID)
	if err != nil {
		return mapServiceError(c, err)
	}

	if h.metrics != nil {
		h.metrics.RecordSessionClaimed()
	}
	middleware.ClearSessionCookie(c, h.cfg)
	return c.JSON(fiber.Map{
		"message":                  "Session claimed successfully",
		"discovery_profile_id":     result.DiscoveryProfileID,
		"conversation_transferred": result.ConversationTransferred,
		"orders_transferred":       result.OrdersTransferred,
	})
}
