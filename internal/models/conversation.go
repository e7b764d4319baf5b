package models

import "time"

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Conversation is a chat thread owned by exactly one of a session or a
// profile. Claim transfers ownership by clearing SessionID and setting
// ProfileID in a single update.
type Conversation struct {
	ID           string    `bson:"_id" json:"id"`
	SessionID    *string   `bson:"sessionId,omitempty" json:"session_id,omitempty"`
	ProfileID    *string   `bson:"profileId,omitempty" json:"profile_id,omitempty"`
	Title        string    `bson:"title" json:"title"`
	MessageCount int       `bson:"messageCount" json:"message_count"`
	CreatedAt    time.Time `bson:"createdAt" json:"created_at"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updated_at"`
}

// Message is one entry in a conversation's append-only log.
type Message struct {
	ID             string    `bson:"_id" json:"id"`
	ConversationID string    `bson:"conversationId" json:"conversation_id"`
	Role           string    `bson:"role" json:"role"`
	Content        string    `bson:"content" json:"content"`
	CreatedAt      time.Time `bson:"createdAt" json:"created_at"`
}
