package models

import (
	"time"
)

// Session phases
const (
	PhaseDiscovery  = "discovery"
	PhaseROI        = "roi"
	PhaseGreenlight = "greenlight"
)

// IsValidPhase reports whether phase is one of the known session phases.
func IsValidPhase(phase string) bool {
	return phase == PhaseDiscovery || phase == PhaseROI || phase == PhaseGreenlight
}

// Timeframe options for ROI projections
const (
	TimeframeMonthly = "monthly"
	TimeframeYearly  = "yearly"
)

// DiscoveryAnswer is a single answered discovery question. The shape matches
// the frontend DiscoveryAnswer interface.
type DiscoveryAnswer struct {
	QuestionID int    `bson:"questionId" json:"questionId"`
	Key        string `bson:"key" json:"key"`
	Label      string `bson:"label" json:"label"`
	Value      string `bson:"value" json:"value"`
	Group      string `bson:"group" json:"group"`
}

// ROIInputs holds the numeric inputs for the ROI calculation.
type ROIInputs struct {
	LaborRate          float64 `bson:"laborRate" json:"laborRate"`
	Utilization        float64 `bson:"utilization" json:"utilization"`
	MaintenanceFactor  float64 `bson:"maintenanceFactor" json:"maintenanceFactor"`
	ManualMonthlySpend float64 `bson:"manualMonthlySpend" json:"manualMonthlySpend"`
	ManualMonthlyHours float64 `bson:"manualMonthlyHours" json:"manualMonthlyHours"`
}

// TeamMember is one invited stakeholder in the greenlight phase.
type TeamMember struct {
	Email string `bson:"email" json:"email"`
	Name  string `bson:"name" json:"name"`
	Role  string `bson:"role" json:"role"`
}

// Greenlight captures deployment sign-off data.
type Greenlight struct {
	TargetStartDate *string      `bson:"targetStartDate,omitempty" json:"target_start_date,omitempty"`
	TeamMembers     []TeamMember `bson:"teamMembers,omitempty" json:"team_members"`
	PaymentMethod   *string      `bson:"paymentMethod,omitempty" json:"payment_method,omitempty"`
}

// Session represents an anonymous visitor's discovery progress. The token is
// the only credential; once ClaimedByProfileID is set the row is immutable.
type Session struct {
	ID                   string                     `bson:"_id" json:"id"`
	SessionToken         string                     `bson:"sessionToken" json:"-"`
	CurrentQuestionIndex int                        `bson:"currentQuestionIndex" json:"current_question_index"`
	Phase                string                     `bson:"phase" json:"phase"`
	Answers              map[string]DiscoveryAnswer `bson:"answers" json:"answers"`
	ROIInputs            *ROIInputs                 `bson:"roiInputs,omitempty" json:"roi_inputs,omitempty"`
	SelectedProductIDs   []string                   `bson:"selectedProductIds" json:"selected_product_ids"`
	Timeframe            *string                    `bson:"timeframe,omitempty" json:"timeframe,omitempty"`
	Greenlight           *Greenlight                `bson:"greenlight,omitempty" json:"greenlight,omitempty"`
	ConversationID       *string                    `bson:"conversationId,omitempty" json:"conversation_id,omitempty"`
	ClaimedByProfileID   *string                    `bson:"claimedByProfileId,omitempty" json:"claimed_by_profile_id,omitempty"`
	ExpiresAt            time.Time                  `bson:"expiresAt" json:"expires_at"`
	CreatedAt            time.Time                  `bson:"createdAt" json:"created_at"`
	UpdatedAt            time.Time                  `bson:"updatedAt" json:"updated_at"`
}

// IsClaimed reports whether the session has been claimed by a profile.
func (s *Session) IsClaimed() bool {
	return s.ClaimedByProfileID != nil && *s.ClaimedByProfileID != ""
}

// IsExpired reports whether the session is past its expiry at the given time.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsValid reports whether the session can still authenticate requests:
// it exists, is unclaimed, and has not expired.
func (s *Session) IsValid(now time.Time) bool {
	return !s.IsClaimed() && !s.IsExpired(now)
}

// SessionUpdate is a partial patch for PUT /api/sessions/me. Nil fields are
// left untouched; Answers merges key-wise instead of replacing the map.
type SessionUpdate struct {
	CurrentQuestionIndex *int                       `json:"current_question_index,omitempty"`
	Phase                *string                    `json:"phase,omitempty"`
	Answers              map[string]DiscoveryAnswer `json:"answers,omitempty"`
	ROIInputs            *ROIInputs                 `json:"roi_inputs,omitempty"`
	SelectedProductIDs   []string                   `json:"selected_product_ids,omitempty"`
	Timeframe            *string                    `json:"timeframe,omitempty"`
	Greenlight           *Greenlight                `json:"greenlight,omitempty"`
}

// ClaimResult reports what a successful claim moved over to the profile.
type ClaimResult struct {
	DiscoveryProfileID      string `json:"discovery_profile_id"`
	ConversationTransferred bool   `json:"conversation_transferred"`
	OrdersTransferred       int    `json:"orders_transferred"`
}
