package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"autopilot/internal/database"
	"autopilot/internal/models"
)

// Conversation errors
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrInvalidOwner         = errors.New("conversation needs exactly one owner")
)

// Owner identifies who a conversation or order belongs to. Exactly one of
// the two fields is set.
type Owner struct {
	SessionID string
	ProfileID string
}

// Valid reports whether exactly one owner field is set.
func (o Owner) Valid() bool {
	return (o.SessionID != "") != (o.ProfileID != "")
}

// Owns reports whether this owner matches the conversation's current owner.
func (o Owner) Owns(conv *models.Conversation) bool {
	if o.ProfileID != "" {
		return conv.ProfileID != nil && *conv.ProfileID == o.ProfileID
	}
	if o.SessionID != "" {
		return conv.SessionID != nil && *conv.SessionID == o.SessionID
	}
	return false
}

func (o Owner) filter() bson.M {
	if o.ProfileID != "" {
		return bson.M{"profileId": o.ProfileID}
	}
	return bson.M{"sessionId": o.SessionID}
}

// ConversationService manages conversations and their append-only message
// logs.
type ConversationService struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
}

// NewConversationService creates a new conversation service
func NewConversationService(db *database.MongoDB) *ConversationService {
	return &ConversationService{
		conversations: db.Collection(database.CollectionConversations),
		messages:      db.Collection(database.CollectionMessages),
	}
}

// Create starts a new conversation for the owner.
func (s *ConversationService) Create(ctx context.Context, owner Owner, title string) (*models.Conversation, error) {
	if !owner.Valid() {
		return nil, ErrInvalidOwner
	}
	if title == "" {
		title = "New conversation"
	}

	now := time.Now().UTC()
	conv := &models.Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if owner.ProfileID != "" {
		conv.ProfileID = &owner.ProfileID
	} else {
		conv.SessionID = &owner.SessionID
	}

	if _, err := s.conversations.InsertOne(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// Get loads a conversation the owner can access.
func (s *ConversationService) Get(ctx context.Context, id string, owner Owner) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.conversations.FindOne(ctx, bson.M{"_id": id}).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	// Non-owners get the same not-found as a missing row
	if !owner.Owns(&conv) {
		return nil, ErrConversationNotFound
	}
	return &conv, nil
}

// List returns the owner's conversations, most recently active first.
func (s *ConversationService) List(ctx context.Context, owner Owner) ([]models.Conversation, error) {
	if !owner.Valid() {
		return nil, ErrInvalidOwner
	}

	cursor, err := s.conversations.Find(ctx, owner.filter(),
		options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}}).SetLimit(100))
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	conversations := []models.Conversation{}
	if err := cursor.All(ctx, &conversations); err != nil {
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}
	return conversations, nil
}

// Delete removes a conversation and its messages.
func (s *ConversationService) Delete(ctx context.Context, id string, owner Owner) error {
	if _, err := s.Get(ctx, id, owner); err != nil {
		return err
	}

	if _, err := s.messages.DeleteMany(ctx, bson.M{"conversationId": id}); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if _, err := s.conversations.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// AppendMessage adds a message to the conversation log and bumps the
// conversation's activity timestamp.
func (s *ConversationService) AppendMessage(ctx context.Context, conversationID, role, content string) (*models.Message, error) {
	msg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}

	if _, err := s.messages.InsertOne(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	_, err := s.conversations.UpdateOne(ctx,
		bson.M{"_id": conversationID},
		bson.M{"$set": bson.M{"updatedAt": msg.CreatedAt}, "$inc": bson.M{"messageCount": 1}},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to touch conversation: %w", err)
	}

	return msg, nil
}

// Messages returns the conversation's messages in chronological order.
func (s *ConversationService) Messages(ctx context.Context, conversationID string, owner Owner) ([]models.Message, error) {
	if _, err := s.Get(ctx, conversationID, owner); err != nil {
		return nil, err
	}

	cursor, err := s.messages.Find(ctx,
		bson.M{"conversationId": conversationID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	messages := []models.Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return messages, nil
}

// RecentMessages returns the last n messages in chronological order, used
// for LLM context windows.
func (s *ConversationService) RecentMessages(ctx context.Context, conversationID string, n int) ([]models.Message, error) {
	cursor, err := s.messages.Find(ctx,
		bson.M{"conversationId": conversationID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(int64(n)))
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}

	var recent []models.Message
	if err := cursor.All(ctx, &recent); err != nil {
		return nil, fmt.Errorf("failed to decode recent messages: %w", err)
	}

	// Reverse newest-first into chronological order
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	return recent, nil
}
