package models

import "time"

// DiscoveryProfile is the authenticated counterpart of a Session: same
// discovery state, keyed 1:1 to a profile instead of a bearer token.
type DiscoveryProfile struct {
	ID                   string                     `bson:"_id" json:"id"`
	ProfileID            string                     `bson:"profileId" json:"profile_id"`
	CurrentQuestionIndex int                        `bson:"currentQuestionIndex" json:"current_question_index"`
	Phase                string                     `bson:"phase" json:"phase"`
	Answers              map[string]DiscoveryAnswer `bson:"answers" json:"answers"`
	ROIInputs            *ROIInputs                 `bson:"roiInputs,omitempty" json:"roi_inputs,omitempty"`
	SelectedProductIDs   []string                   `bson:"selectedProductIds" json:"selected_product_ids"`
	Timeframe            *string                    `bson:"timeframe,omitempty" json:"timeframe,omitempty"`
	Greenlight           *Greenlight                `bson:"greenlight,omitempty" json:"greenlight,omitempty"`
	CreatedAt            time.Time                  `bson:"createdAt" json:"created_at"`
	UpdatedAt            time.Time                  `bson:"updatedAt" json:"updated_at"`
}

// DiscoveryProfileUpdate is a partial patch for PUT /api/discovery.
type DiscoveryProfileUpdate struct {
	CurrentQuestionIndex *int                       `json:"current_question_index,omitempty"`
	Phase                *string                    `json:"phase,omitempty"`
	Answers              map[string]DiscoveryAnswer `json:"answers,omitempty"`
	ROIInputs            *ROIInputs                 `json:"roi_inputs,omitempty"`
	SelectedProductIDs   []string                   `json:"selected_product_ids,omitempty"`
	Timeframe            *string                    `json:"timeframe,omitempty"`
	Greenlight           *Greenlight                `json:"greenlight,omitempty"`
}
