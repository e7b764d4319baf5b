package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"autopilot/internal/models"
)

const agentSystemPromptBase = `You are the procurement agent for an autonomous cleaning robot platform.
You guide facility operators through discovery, build an ROI case, and help them
select and lease the right robot. Be concise, concrete and numbers-driven. Ask
one question at a time. Never invent facility data the user has not given you.`

// phasePrompts steer the agent per session phase.
var phasePrompts = map[string]string{
	models.PhaseDiscovery:  "The user is in the discovery phase. Work through the open discovery questions, starting with company name and type, court count, current cleaning method, duration and monthly spend.",
	models.PhaseROI:        "The user is in the ROI phase. Use their answers to discuss labor rate, monthly spend and hours, and walk them through projected savings and payback.",
	models.PhaseGreenlight: "The user is in the greenlight phase. Help them finalize robot selection, timeline, stakeholders and checkout.",
}

// ChatResponse is what a message send returns: the stored pair of messages
// plus whatever extraction managed to pull out (nil when it failed).
type ChatResponse struct {
	UserMessage      *models.Message   `json:"user_message"`
	AssistantMessage *models.Message   `json:"assistant_message"`
	Extraction       *ExtractionResult `json:"extraction,omitempty"`
}

// AgentService runs the chat loop: store the user message, build context,
// call the LLM, store the reply, then fire best-effort extraction.
type AgentService struct {
	llm                *LLMClient
	conversations      *ConversationService
	sessions           *SessionService
	discovery          *DiscoveryService
	extraction         *ExtractionService
	metrics            *Metrics
	maxContextMessages int
}

// NewAgentService creates a new agent service
func NewAgentService(llm *LLMClient, conversations *ConversationService, sessions *SessionService, discovery *DiscoveryService, extraction *ExtractionService, metrics *Metrics, maxContextMessages int) *AgentService {
	if maxContextMessages <= 0 {
		maxContextMessages = 20
	}
	return &AgentService{
		llm:                llm,
		conversations:      conversations,
		sessions:           sessions,
		discovery:          discovery,
		extraction:         extraction,
		metrics:            metrics,
		maxContextMessages: maxContextMessages,
	}
}

// SendMessage appends the user message, generates the assistant reply and
// returns both. Extraction errors never surface here.
func (s *AgentService) SendMessage(ctx context.Context, conversationID string, owner Owner, content string) (*ChatResponse, error) {
	conv, err := s.conversations.Get(ctx, conversationID, owner)
	if err != nil {
		return nil, err
	}

	userMsg, err := s.conversations.AppendMessage(ctx, conversationID, models.RoleUser, content)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordChatRequest()
	}
	start := time.Now()

	messages, err := s.buildContext(ctx, conversationID, owner)
	if err != nil {
		return nil, err
	}

	reply, err := s.llm.ChatCompletion(ctx, messages, 0.7, nil)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordChatError("llm")
		}
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordChatLatency(time.Since(start).Seconds())
	}

	assistantMsg, err := s.conversations.AppendMessage(ctx, conversationID, models.RoleAssistant, reply)
	if err != nil {
		return nil, err
	}

	// First exchange names the conversation after the opening message
	if conv.MessageCount == 0 {
		s.setTitle(ctx, conversationID, content)
	}

	resp := &ChatResponse{UserMessage: userMsg, AssistantMessage: assistantMsg}
	if s.extraction != nil {
		resp.Extraction = s.extraction.Extract(ctx, conversationID, owner)
	}

	return resp, nil
}

// systemPromptForPhase appends the phase steering to the base prompt.
func systemPromptForPhase(phase string) string {
	system := agentSystemPromptBase
	if prompt, ok := phasePrompts[phase]; ok {
		system += "\n\n" + prompt
	}
	return system
}

// phaseForOwner reads the caller's current phase from their session or
// discovery profile. Lookup failures fall back to discovery.
func (s *AgentService) phaseForOwner(ctx context.Context, owner Owner) string {
	if owner.SessionID != "" {
		if session, err := s.sessions.GetByID(ctx, owner.SessionID); err == nil && session.Phase != "" {
			return session.Phase
		}
	}
	if owner.ProfileID != "" && s.discovery != nil {
		if profile, err := s.discovery.GetOrCreate(ctx, owner.ProfileID); err == nil && profile.Phase != "" {
			return profile.Phase
		}
	}
	return models.PhaseDiscovery
}

// buildContext assembles the system prompt plus the last N messages.
func (s *AgentService) buildContext(ctx context.Context, conversationID string, owner Owner) ([]ChatMessage, error) {
	system := systemPromptForPhase(s.phaseForOwner(ctx, owner))

	recent, err := s.conversations.RecentMessages(ctx, conversationID, s.maxContextMessages)
	if err != nil {
		return nil, err
	}

	messages := make([]ChatMessage, 0, len(recent)+1)
	messages = append(messages, ChatMessage{Role: models.RoleSystem, Content: system})
	for _, msg := range recent {
		if msg.Role != models.RoleUser && msg.Role != models.RoleAssistant {
			continue
		}
		messages = append(messages, ChatMessage{Role: msg.Role, Content: msg.Content})
	}
	return messages, nil
}

func (s *AgentService) setTitle(ctx context.Context, conversationID, firstMessage string) {
	title := firstMessage
	if len(title) > 60 {
		title = title[:57] + "..."
	}
	if _, err := s.conversations.conversations.UpdateOne(ctx,
		bson.M{"_id": conversationID},
		bson.M{"$set": bson.M{"title": title}},
	); err != nil {
		log.Printf("⚠️  Failed to set conversation title: %v", err)
	}
}
