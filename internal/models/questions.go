package models

// DiscoveryQuestion is one entry in the fixed discovery flow. The set mirrors
// the frontend QUESTION_FLOW; extraction validates against it so the LLM can
// never introduce keys the product does not know about.
type DiscoveryQuestion struct {
	ID    int    `json:"id"`
	Key   string `json:"key"`
	Label string `json:"label"`
	Group string `json:"group"`
}

// Answer groups
const (
	GroupCompany    = "Company"
	GroupFacility   = "Facility"
	GroupOperations = "Operations"
	GroupEconomics  = "Economics"
	GroupContext    = "Context"
)

// DiscoveryQuestions is the closed question set, ordered by flow position.
var DiscoveryQuestions = []DiscoveryQuestion{
	{ID: 1, Key: "company_name", Label: "Company Name", Group: GroupCompany},
	{ID: 2, Key: "company_type", Label: "Company Type", Group: GroupCompany},
	{ID: 3, Key: "priorities", Label: "Top Priorities", Group: GroupCompany},
	{ID: 4, Key: "background", Label: "Facility Background", Group: GroupFacility},
	{ID: 5, Key: "fnb", Label: "Food & Beverage", Group: GroupFacility},
	{ID: 6, Key: "courts_count", Label: "Indoor Courts", Group: GroupFacility},
	{ID: 7, Key: "surfaces", Label: "Surface Types", Group: GroupFacility},
	{ID: 8, Key: "sqft", Label: "Total Sq Ft", Group: GroupFacility},
	{ID: 9, Key: "method", Label: "Cleaning Method", Group: GroupOperations},
	{ID: 10, Key: "responsibility", Label: "Responsibility", Group: GroupOperations},
	{ID: 11, Key: "budget_exists", Label: "Budget Status", Group: GroupEconomics},
	{ID: 12, Key: "monthly_spend", Label: "Monthly Spend", Group: GroupEconomics},
	{ID: 13, Key: "frequency", Label: "Cleaning Frequency", Group: GroupOperations},
	{ID: 14, Key: "timing", Label: "Cleaning Timing", Group: GroupOperations},
	{ID: 15, Key: "duration", Label: "Session Duration", Group: GroupOperations},
	{ID: 16, Key: "challenges", Label: "Pain Points", Group: GroupOperations},
	{ID: 17, Key: "opportunity_cost", Label: "Opportunity Value", Group: GroupEconomics},
	{ID: 18, Key: "feedback", Label: "Member Feedback", Group: GroupContext},
	{ID: 19, Key: "stakeholders", Label: "Stakeholders", Group: GroupCompany},
	{ID: 20, Key: "lifecycle", Label: "Resurfacing Timeline", Group: GroupFacility},
	{ID: 21, Key: "failure_impact", Label: "Risk Impact", Group: GroupOperations},
	{ID: 22, Key: "confidence", Label: "Confidence Score", Group: GroupContext},
	{ID: 23, Key: "past_attempts", Label: "Past Experiments", Group: GroupContext},
	{ID: 24, Key: "ideal_timeline", Label: "Ideal Timeline", Group: GroupContext},
	{ID: 25, Key: "upcoming_events", Label: "Upcoming Events", Group: GroupContext},
	{ID: 26, Key: "business_challenges", Label: "Business Constraints", Group: GroupContext},
}

// RequiredQuestionKeys are the minimum answers needed before the agent can make
// a robot recommendation and move the session into the roi phase.
var RequiredQuestionKeys = map[string]bool{
	"company_name":  true,
	"company_type":  true,
	"courts_count":  true,
	"method":        true,
	"duration":      true,
	"monthly_spend": true,
}

var questionByKey = func() map[string]DiscoveryQuestion {
	m := make(map[string]DiscoveryQuestion, len(DiscoveryQuestions))
	for _, q := range DiscoveryQuestions {
		m[q.Key] = q
	}
	return m
}()

// QuestionByKey returns the question definition for a key.
func QuestionByKey(key string) (DiscoveryQuestion, bool) {
	q, ok := questionByKey[key]
	return q, ok
}

// IsValidQuestionKey reports whether key belongs to the discovery flow.
func IsValidQuestionKey(key string) bool {
	_, ok := questionByKey[key]
	return ok
}

// ValidGroups lists the allowed answer groups.
var ValidGroups = []string{GroupCompany, GroupFacility, GroupOperations, GroupEconomics, GroupContext}

// QuestionKeys returns all valid keys in flow order.
func QuestionKeys() []string {
	keys := make([]string, len(DiscoveryQuestions))
	for i, q := range DiscoveryQuestions {
		keys[i] = q.Key
	}
	return keys
}
