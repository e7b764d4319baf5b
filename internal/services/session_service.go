package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"autopilot/internal/database"
	"autopilot/internal/models"
)

// Session errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClaimed  = errors.New("session already claimed")
	ErrSessionExpired  = errors.New("session expired")
)

// SessionService manages anonymous sessions and the claim handoff into a
// discovery profile.
type SessionService struct {
	db                *database.MongoDB
	sessions          *mongo.Collection
	discoveryProfiles *mongo.Collection
	conversations     *mongo.Collection
	orders            *mongo.Collection
	expiryDays        int
}

// NewSessionService creates a new session service
func NewSessionService(db *database.MongoDB, expiryDays int) *SessionService {
	if expiryDays <= 0 {
		expiryDays = 30
	}
	return &SessionService{
		db:                db,
		sessions:          db.Collection(database.CollectionSessions),
		discoveryProfiles: db.Collection(database.CollectionDiscoveryProfiles),
		conversations:     db.Collection(database.CollectionConversations),
		orders:            db.Collection(database.CollectionOrders),
		expiryDays:        expiryDays,
	}
}

// generateSessionToken returns a 64-hex-char token from crypto/rand.
func generateSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Create mints a new anonymous session in the discovery phase.
func (s *SessionService) Create(ctx context.Context) (*models.Session, error) {
	token, err := generateSessionToken()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	session := &models.Session{
		ID:                 uuid.NewString(),
		SessionToken:       token,
		Phase:              models.PhaseDiscovery,
		Answers:            map[string]models.DiscoveryAnswer{},
		SelectedProductIDs: []string{},
		ExpiresAt:          now.AddDate(0, 0, s.expiryDays),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if _, err := s.sessions.InsertOne(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}

	log.Printf("✅ Created session %s (expires %s)", session.ID, session.ExpiresAt.Format(time.RFC3339))
	return session, nil
}

// GetByToken loads a session by its token.
func (s *SessionService) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	var session models.Session
	err := s.sessions.FindOne(ctx, bson.M{"sessionToken": token}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &session, nil
}

// GetByID loads a session by its ID.
func (s *SessionService) GetByID(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	err := s.sessions.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &session, nil
}

// MergeAnswers merges incoming answers into existing ones key-wise. The
// incoming value replaces the stored one for the same key; other keys are
// untouched. Last writer wins; there is no version check.
func MergeAnswers(existing, incoming map[string]models.DiscoveryAnswer) map[string]models.DiscoveryAnswer {
	merged := make(map[string]models.DiscoveryAnswer, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}
	return merged
}

// buildUpdateSet translates a partial patch into a $set document. Answers
// merge key-wise; scalar fields replace outright.
func buildUpdateSet(session *models.Session, update *models.SessionUpdate) bson.M {
	set := bson.M{"updatedAt": time.Now().UTC()}

	if update.CurrentQuestionIndex != nil {
		set["currentQuestionIndex"] = *update.CurrentQuestionIndex
	}
	if update.Phase != nil {
		set["phase"] = *update.Phase
	}
	if update.Answers != nil {
		set["answers"] = MergeAnswers(session.Answers, update.Answers)
	}
	if update.ROIInputs != nil {
		set["roiInputs"] = update.ROIInputs
	}
	if update.SelectedProductIDs != nil {
		set["selectedProductIds"] = update.SelectedProductIDs
	}
	if update.Timeframe != nil {
		set["timeframe"] = *update.Timeframe
	}
	if update.Greenlight != nil {
		set["greenlight"] = update.Greenlight
	}

	return set
}

// Update applies a partial patch to an unclaimed, unexpired session and
// returns the updated document.
func (s *SessionService) Update(ctx context.Context, sessionID string, update *models.SessionUpdate) (*models.Session, error) {
	session, err := s.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsClaimed() {
		return nil, ErrSessionClaimed
	}
	if session.IsExpired(time.Now()) {
		return nil, ErrSessionExpired
	}

	if update.Phase != nil && !models.IsValidPhase(*update.Phase) {
		return nil, fmt.Errorf("invalid phase %q", *update.Phase)
	}

	set := buildUpdateSet(session, update)

	var updated models.Session
	err = s.sessions.FindOneAndUpdate(
		ctx,
		bson.M{"_id": sessionID, "claimedByProfileId": bson.M{"$exists": false}},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Claimed between the read and the write
			return nil, ErrSessionClaimed
		}
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	return &updated, nil
}

// SetConversationID links the session to its conversation.
func (s *SessionService) SetConversationID(ctx context.Context, sessionID, conversationID string) error {
	_, err := s.sessions.UpdateOne(ctx,
		bson.M{"_id": sessionID},
		bson.M{"$set": bson.M{"conversationId": conversationID, "updatedAt": time.Now().UTC()}},
	)
	return err
}

// MergeExtractedAnswers applies extraction output to the session without
// going through the claimed/expired guard twice (the caller already holds a
// validated session).
func (s *SessionService) MergeExtractedAnswers(ctx context.Context, sessionID string, answers map[string]models.DiscoveryAnswer, roi *models.ROIInputs) error {
	session, err := s.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.IsClaimed() {
		return ErrSessionClaimed
	}

	set := bson.M{
		"answers":   MergeAnswers(session.Answers, answers),
		"updatedAt": time.Now().UTC(),
	}
	if roi != nil {
		set["roiInputs"] = roi
	}

	_, err = s.sessions.UpdateOne(ctx, bson.M{"_id": sessionID}, bson.M{"$set": set})
	return err
}

// claimStore is the set of writes the claim orchestration performs. All of
// them run inside one Mongo transaction in production.
type claimStore interface {
	upsertDiscoveryProfile(ctx context.Context, session *models.Session, profileID string) (string, error)
	transferConversations(ctx context.Context, sessionID, profileID string) (int64, error)
	transferOrders(ctx context.Context, sessionID, profileID string) (int64, error)
	markClaimed(ctx context.Context, sessionID, profileID string) error
}

// runClaim hands a session's discovery state over to a profile: upsert the
// discovery profile (session answers win conflicts), re-parent the session's
// conversations, transfer orders, and mark the session claimed. Any failed
// step aborts the whole claim.
func runClaim(ctx context.Context, store claimStore, session *models.Session, profileID string, now time.Time) (*models.ClaimResult, error) {
	if session.IsClaimed() {
		return nil, ErrSessionClaimed
	}
	if session.IsExpired(now) {
		return nil, ErrSessionExpired
	}

	var result models.ClaimResult

	profileDocID, err := store.upsertDiscoveryProfile(ctx, session, profileID)
	if err != nil {
		return nil, err
	}
	result.DiscoveryProfileID = profileDocID

	conversations, err := store.transferConversations(ctx, session.ID, profileID)
	if err != nil {
		return nil, err
	}
	result.ConversationTransferred = conversations > 0

	orders, err := store.transferOrders(ctx, session.ID, profileID)
	if err != nil {
		return nil, err
	}
	result.OrdersTransferred = int(orders)

	if err := store.markClaimed(ctx, session.ID, profileID); err != nil {
		return nil, err
	}

	return &result, nil
}

// Claim atomically claims the session identified by token for a profile.
// Any failure aborts the transaction and leaves the session untouched.
func (s *SessionService) Claim(ctx context.Context, sessionToken, profileID string) (*models.ClaimResult, error) {
	session, err := s.GetByToken(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	var result *models.ClaimResult
	err = s.db.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		var txErr error
		result, txErr = runClaim(sessCtx, s, session, profileID, time.Now())
		return txErr
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Session %s claimed by profile %s (conversation=%t orders=%d)",
		session.ID, profileID, result.ConversationTransferred, result.OrdersTransferred)
	return result, nil
}

// transferConversations re-parents every conversation the session owns. The
// session reference is cleared so the claimed session cannot reach them.
func (s *SessionService) transferConversations(ctx context.Context, sessionID, profileID string) (int64, error) {
	res, err := s.conversations.UpdateMany(ctx,
		bson.M{"sessionId": sessionID},
		bson.M{"$set": bson.M{"profileId": profileID, "updatedAt": time.Now().UTC()}, "$unset": bson.M{"sessionId": ""}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to transfer conversations: %w", err)
	}
	return res.ModifiedCount, nil
}

// transferOrders keeps sessionId for audit; profileId marks the new owner.
func (s *SessionService) transferOrders(ctx context.Context, sessionID, profileID string) (int64, error) {
	res, err := s.orders.UpdateMany(ctx,
		bson.M{"sessionId": sessionID, "profileId": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"profileId": profileID, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to transfer orders: %w", err)
	}
	return res.ModifiedCount, nil
}

func (s *SessionService) markClaimed(ctx context.Context, sessionID, profileID string) error {
	res, err := s.sessions.UpdateOne(ctx,
		bson.M{"_id": sessionID, "claimedByProfileId": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"claimedByProfileId": profileID, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark session claimed: %w", err)
	}
	if res.ModifiedCount == 0 {
		// Claimed concurrently between the read and this write
		return ErrSessionClaimed
	}
	return nil
}

// upsertDiscoveryProfile merges the session's discovery state into the
// profile's discovery row. Session values win key conflicts: they are the
// more recent input.
func (s *SessionService) upsertDiscoveryProfile(ctx context.Context, session *models.Session, profileID string) (string, error) {
	var existing models.DiscoveryProfile
	err := s.discoveryProfiles.FindOne(ctx, bson.M{"profileId": profileID}).Decode(&existing)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return "", fmt.Errorf("failed to load discovery profile: %w", err)
	}

	now := time.Now().UTC()

	if errors.Is(err, mongo.ErrNoDocuments) {
		profile := newDiscoveryProfileFromSession(session, profileID, now)
		if _, err := s.discoveryProfiles.InsertOne(ctx, profile); err != nil {
			return "", fmt.Errorf("failed to create discovery profile: %w", err)
		}
		return profile.ID, nil
	}

	set := discoveryProfileMergeSet(&existing, session, now)
	if _, err := s.discoveryProfiles.UpdateOne(ctx, bson.M{"_id": existing.ID}, bson.M{"$set": set}); err != nil {
		return "", fmt.Errorf("failed to merge discovery profile: %w", err)
	}
	return existing.ID, nil
}

// newDiscoveryProfileFromSession seeds a fresh discovery profile with the
// session's entire discovery state.
func newDiscoveryProfileFromSession(session *models.Session, profileID string, now time.Time) models.DiscoveryProfile {
	profile := models.DiscoveryProfile{
		ID:                   uuid.NewString(),
		ProfileID:            profileID,
		CurrentQuestionIndex: session.CurrentQuestionIndex,
		Phase:                session.Phase,
		Answers:              session.Answers,
		ROIInputs:            session.ROIInputs,
		SelectedProductIDs:   session.SelectedProductIDs,
		Timeframe:            session.Timeframe,
		Greenlight:           session.Greenlight,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if profile.Answers == nil {
		profile.Answers = map[string]models.DiscoveryAnswer{}
	}
	return profile
}

// discoveryProfileMergeSet builds the $set for merging session state into an
// existing discovery profile. Answers merge key-wise with session values
// winning conflicts; profile-only answers survive untouched.
func discoveryProfileMergeSet(existing *models.DiscoveryProfile, session *models.Session, now time.Time) bson.M {
	set := bson.M{
		"answers":   MergeAnswers(existing.Answers, session.Answers),
		"updatedAt": now,
	}
	if session.CurrentQuestionIndex > existing.CurrentQuestionIndex {
		set["currentQuestionIndex"] = session.CurrentQuestionIndex
	}
	if session.Phase != "" {
		set["phase"] = session.Phase
	}
	if session.ROIInputs != nil {
		set["roiInputs"] = session.ROIInputs
	}
	if len(session.SelectedProductIDs) > 0 {
		set["selectedProductIds"] = session.SelectedProductIDs
	}
	if session.Timeframe != nil {
		set["timeframe"] = *session.Timeframe
	}
	if session.Greenlight != nil {
		set["greenlight"] = session.Greenlight
	}
	return set
}

// CleanupExpired deletes expired, unclaimed sessions and returns the count.
// Claimed rows are historical audit trail and are never deleted here, even
// past expiry.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	now := time.Now().UTC()

	// Count orphans before deleting so operators can decide what to do with
	// conversations/orders whose only owner just went away.
	cursor, err := s.sessions.Find(ctx, bson.M{
		"expiresAt":          bson.M{"$lte": now},
		"claimedByProfileId": bson.M{"$exists": false},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan expired sessions: %w", err)
	}

	var expired []models.Session
	if err := cursor.All(ctx, &expired); err != nil {
		return 0, fmt.Errorf("failed to decode expired sessions: %w", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	ids := make([]string, len(expired))
	for i, sess := range expired {
		ids[i] = sess.ID
		if sess.ConversationID != nil && *sess.ConversationID != "" {
			log.Printf("⚠️  Expired session %s leaves orphaned conversation %s", sess.ID, *sess.ConversationID)
		}
	}

	orphanedOrders, err := s.orders.CountDocuments(ctx, bson.M{
		"sessionId": bson.M{"$in": ids},
		"profileId": bson.M{"$exists": false},
	})
	if err == nil && orphanedOrders > 0 {
		log.Printf("⚠️  Expired sessions leave %d orphaned orders", orphanedOrders)
	}

	res, err := s.sessions.DeleteMany(ctx, bson.M{
		"_id":                bson.M{"$in": ids},
		"claimedByProfileId": bson.M{"$exists": false},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	return res.DeletedCount, nil
}
