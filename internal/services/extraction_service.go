package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"autopilot/internal/models"
)

// extractionWindow is how many recent messages the extractor reads.
const extractionWindow = 10

const extractionSystemPrompt = `You are an extraction assistant for a robotics procurement platform.

Analyze the conversation and extract structured discovery data about the user's facility and needs.

RULES:
1. Only extract information the user explicitly stated or strongly implied
2. Do not infer or guess values
3. Use the exact value provided by the user (e.g. "50000 sqft", not "50,000 square feet")
4. For ROI inputs, only extract when specific numbers are mentioned
5. Return an empty answers array if nothing extractable is present

company_name is the specific business name ("Downtown Pickleball Club"); company_type is the
category ("Pickleball Club", "Tennis Club", "Restaurant", "Warehouse", "Datacenter"). A bare
category is a company_type, never a company_name.

ROI inputs:
- laborRate: hourly wages or labor cost per hour
- manualMonthlySpend: current monthly cleaning spend
- manualMonthlyHours: hours spent cleaning per month`

// ExtractionResult summarizes what one extraction pass stored.
type ExtractionResult struct {
	ExtractedCount int      `json:"extracted_count"`
	Confidence     string   `json:"confidence"`
	Keys           []string `json:"keys"`
}

type extractedPayload struct {
	Answers []models.DiscoveryAnswer `json:"answers"`
	ROIInputs struct {
		LaborRate          *float64 `json:"laborRate"`
		ManualMonthlySpend *float64 `json:"manualMonthlySpend"`
		ManualMonthlyHours *float64 `json:"manualMonthlyHours"`
	} `json:"roi_inputs"`
	ExtractionConfidence string `json:"extraction_confidence"`
}

// extractionSchema is the strict structured-output schema. Keys and groups
// are enums built from the closed question set so the model cannot drift.
func extractionSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"answers": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"questionId": map[string]interface{}{"type": "integer"},
						"key":        map[string]interface{}{"type": "string", "enum": models.QuestionKeys()},
						"label":      map[string]interface{}{"type": "string"},
						"value":      map[string]interface{}{"type": "string"},
						"group":      map[string]interface{}{"type": "string", "enum": models.ValidGroups},
					},
					"required":             []string{"questionId", "key", "label", "value", "group"},
					"additionalProperties": false,
				},
			},
			"roi_inputs": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"laborRate":          map[string]interface{}{"type": []string{"number", "null"}},
					"manualMonthlySpend": map[string]interface{}{"type": []string{"number", "null"}},
					"manualMonthlyHours": map[string]interface{}{"type": []string{"number", "null"}},
				},
				"required":             []string{"laborRate", "manualMonthlySpend", "manualMonthlyHours"},
				"additionalProperties": false,
			},
			"extraction_confidence": map[string]interface{}{
				"type": "string",
				"enum": []string{"high", "medium", "low"},
			},
		},
		"required":             []string{"answers", "roi_inputs", "extraction_confidence"},
		"additionalProperties": false,
	}
}

// ExtractionService pulls structured discovery answers out of chat text and
// merges them into the caller's session or discovery profile. Every failure
// is logged and swallowed: extraction must never break the chat flow.
type ExtractionService struct {
	llm           *LLMClient
	conversations *ConversationService
	sessions      *SessionService
	discovery     *DiscoveryService
	metrics       *Metrics
}

// NewExtractionService creates a new extraction service
func NewExtractionService(llm *LLMClient, conversations *ConversationService, sessions *SessionService, discovery *DiscoveryService, metrics *Metrics) *ExtractionService {
	return &ExtractionService{
		llm:           llm,
		conversations: conversations,
		sessions:      sessions,
		discovery:     discovery,
		metrics:       metrics,
	}
}

// Extract runs one extraction pass over the conversation's recent messages
// and merges validated answers into the target. Never returns an error to
// the caller's primary flow; the result is nil when extraction failed.
func (s *ExtractionService) Extract(ctx context.Context, conversationID string, target Owner) *ExtractionResult {
	result, err := s.extract(ctx, conversationID, target)
	if err != nil {
		log.Printf("⚠️  Extraction failed for conversation %s: %v", conversationID, err)
		if s.metrics != nil {
			s.metrics.RecordExtractionError()
		}
		return nil
	}
	return result
}

func (s *ExtractionService) extract(ctx context.Context, conversationID string, target Owner) (*ExtractionResult, error) {
	if !target.Valid() {
		return nil, ErrInvalidOwner
	}

	recent, err := s.conversations.RecentMessages(ctx, conversationID, extractionWindow)
	if err != nil {
		return nil, err
	}
	if len(recent) == 0 {
		return &ExtractionResult{Confidence: "low", Keys: []string{}}, nil
	}

	current, err := s.currentAnswers(ctx, target)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	content, err := s.llm.ChatCompletion(ctx,
		[]ChatMessage{
			{Role: models.RoleSystem, Content: extractionSystemPrompt},
			{Role: models.RoleUser, Content: buildExtractionPrompt(current, recent)},
		},
		0.1,
		&ResponseFormat{
			Type: "json_schema",
			JSONSchema: &JSONSchema{
				Name:   "discovery_extraction",
				Strict: true,
				Schema: extractionSchema(),
			},
		},
	)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordExtractionLatency(time.Since(start).Seconds())
	}

	var payload extractedPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse extraction output: %w", err)
	}

	answers := ValidateExtractedAnswers(payload.Answers)
	roi := mergeROIInputs(currentROI(current), payload.ROIInputs.LaborRate, payload.ROIInputs.ManualMonthlySpend, payload.ROIInputs.ManualMonthlyHours)

	if len(answers) > 0 || roi != nil {
		if err := s.merge(ctx, target, answers, roi); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(answers))
	for k := range answers {
		keys = append(keys, k)
	}

	if s.metrics != nil {
		s.metrics.RecordExtraction(len(answers))
	}
	log.Printf("✅ Extracted %d answers from conversation %s (confidence=%s)", len(answers), conversationID, payload.ExtractionConfidence)

	return &ExtractionResult{
		ExtractedCount: len(answers),
		Confidence:     payload.ExtractionConfidence,
		Keys:           keys,
	}, nil
}

type currentState struct {
	answers map[string]models.DiscoveryAnswer
	roi     *models.ROIInputs
}

func (s *ExtractionService) currentAnswers(ctx context.Context, target Owner) (*currentState, error) {
	if target.ProfileID != "" {
		profile, err := s.discovery.GetOrCreate(ctx, target.ProfileID)
		if err != nil {
			return nil, err
		}
		return &currentState{answers: profile.Answers, roi: profile.ROIInputs}, nil
	}

	session, err := s.sessions.GetByID(ctx, target.SessionID)
	if err != nil {
		return nil, err
	}
	return &currentState{answers: session.Answers, roi: session.ROIInputs}, nil
}

func currentROI(state *currentState) *models.ROIInputs {
	if state == nil {
		return nil
	}
	return state.roi
}

func (s *ExtractionService) merge(ctx context.Context, target Owner, answers map[string]models.DiscoveryAnswer, roi *models.ROIInputs) error {
	if target.ProfileID != "" {
		return s.discovery.MergeExtractedAnswers(ctx, target.ProfileID, answers, roi)
	}
	return s.sessions.MergeExtractedAnswers(ctx, target.SessionID, answers, roi)
}

func buildExtractionPrompt(current *currentState, recent []models.Message) string {
	var sb strings.Builder
	sb.WriteString("Current extracted data (preserve unless contradicted):\n")
	if current != nil && len(current.answers) > 0 {
		if encoded, err := json.Marshal(current.answers); err == nil {
			sb.Write(encoded)
		}
	} else {
		sb.WriteString("{}")
	}
	sb.WriteString("\n\nRecent conversation:\n")
	for _, msg := range recent {
		sb.WriteString(msg.Role)
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	sb.WriteString("\nExtract only new or updated information from the user's messages. Return an empty answers array if there is none.")
	return sb.String()
}

// ValidateExtractedAnswers drops unknown keys and empty values, and pins
// questionId, label and group to the canonical question table so model
// output cannot corrupt stored rows.
func ValidateExtractedAnswers(raw []models.DiscoveryAnswer) map[string]models.DiscoveryAnswer {
	validated := make(map[string]models.DiscoveryAnswer)
	for _, ans := range raw {
		question, ok := models.QuestionByKey(ans.Key)
		if !ok {
			log.Printf("⚠️  Dropping extracted answer with unknown key %q", ans.Key)
			continue
		}
		value := strings.TrimSpace(ans.Value)
		if value == "" {
			continue
		}
		validated[question.Key] = models.DiscoveryAnswer{
			QuestionID: question.ID,
			Key:        question.Key,
			Label:      question.Label,
			Value:      value,
			Group:      question.Group,
		}
	}
	return validated
}

// mergeROIInputs overlays newly extracted numbers onto the existing inputs.
// Fields the model did not mention keep their stored values; a nil return
// means there was nothing to store.
func mergeROIInputs(existing *models.ROIInputs, laborRate, monthlySpend, monthlyHours *float64) *models.ROIInputs {
	if laborRate == nil && monthlySpend == nil && monthlyHours == nil {
		return nil
	}

	merged := models.ROIInputs{}
	if existing != nil {
		merged = *existing
	}
	if laborRate != nil && *laborRate > 0 {
		merged.LaborRate = *laborRate
	}
	if monthlySpend != nil && *monthlySpend > 0 {
		merged.ManualMonthlySpend = *monthlySpend
	}
	if monthlyHours != nil && *monthlyHours > 0 {
		merged.ManualMonthlyHours = *monthlyHours
	}
	return &merged
}
