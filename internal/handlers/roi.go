package handlers

import (
	"github.com/gofiber/fiber/v2"

	"autopilot/internal/middleware"
	"autopilot/internal/models"
	"autopilot/internal/services"
)

// ROIHandler serves ROI projections and robot recommendations.
type ROIHandler struct {
	roi             *services.ROIService
	recommendations *services.RecommendationService
	robots          *services.RobotService
	discovery       *services.DiscoveryService
	profiles        *services.ProfileService
}

// NewROIHandler creates a new ROI handler
func NewROIHandler(roi *services.ROIService, recommendations *services.RecommendationService, robots *services.RobotService, discovery *services.DiscoveryService, profiles *services.ProfileService) *ROIHandler {
	return &ROIHandler{roi: roi, recommendations: recommendations, robots: robots, discovery: discovery, profiles: profiles}
}

type roiRequest struct {
	RobotID string            `json:"robot_id"`
	Inputs  *models.ROIInputs `json:"inputs,omitempty"`
}

// Calculate handles POST /api/roi/calculate. Inputs default to whatever the
// caller's session or discovery profile has stored.
func (h *ROIHandler) Calculate(c *fiber.Ctx) error {
	var req roiRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
	}
	if req.RobotID == "" {
		return respondError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "robot_id is required")
	}

	robot, err := h.robots.Get(c.UserContext(), req.RobotID)
	if err != nil {
		return mapServiceError(c, err)
	}

	inputs := req.Inputs
	if inputs == nil {
		inputs = h.storedInputs(c)
	}
	if inputs == nil {
		return respondError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "No ROI inputs provided or stored")
	}

	projection, err := h.roi.Calculate(*inputs, robot)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(projection)
}

type recommendationsRequest struct {
	Answers map[string]models.DiscoveryAnswer `json:"answers,omitempty"`
	Inputs  *models.ROIInputs                 `json:"roi_inputs,omitempty"`
	TopK    int                               `json:"top_k,omitempty"`
}

// Recommendations handles POST /api/roi/recommendations. Answers and inputs
// default to whatever the caller's session or discovery profile has stored;
// missing inputs are derived from the answers.
func (h *ROIHandler) Recommendations(c *fiber.Ctx) error {
	var req recommendationsRequest
	_ = c.BodyParser(&req)

	answers := req.Answers
	if answers == nil {
		answers = h.storedAnswers(c)
	}

	inputs := req.Inputs
	if inputs == nil {
		inputs = h.storedInputs(c)
	}

	resp, err := h.recommendations.Recommend(c.UserContext(), answers, inputs, req.TopK)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(resp)
}

func (h *ROIHandler) storedAnswers(c *fiber.Ctx) map[string]models.DiscoveryAnswer {
	if session, ok := middleware.SessionFromLocals(c); ok {
		return session.Answers
	}
	if userID, ok := middleware.UserIDFromLocals(c); ok {
		email, _ := c.Locals(middleware.LocalsUserEmail).(string)
		profile, err := h.profiles.EnsureProfile(c.UserContext(), userID, email)
		if err != nil {
			return nil
		}
		if discovery, err := h.discovery.GetOrCreate(c.UserContext(), profile.ID); err == nil {
			return discovery.Answers
		}
	}
	return nil
}

func (h *ROIHandler) storedInputs(c *fiber.Ctx) *models.ROIInputs {
	if session, ok := middleware.SessionFromLocals(c); ok {
		return session.ROIInputs
	}
	if userID, ok := middleware.UserIDFromLocals(c); ok {
		email, _ := c.Locals(middleware.LocalsUserEmail).(string)
		profile, err := h.profiles.EnsureProfile(c.UserContext(), userID, email)
		if err != nil {
			return nil
		}
		if discovery, err := h.discovery.GetOrCreate(c.UserContext(), profile.ID); err == nil {
			return discovery.ROIInputs
		}
	}
	return nil
}
