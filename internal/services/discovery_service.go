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

// DiscoveryService manages the authenticated counterpart of sessions: one
// discovery profile per profile ID.
type DiscoveryService struct {
	profiles *mongo.Collection
}

// NewDiscoveryService creates a new discovery service
func NewDiscoveryService(db *database.MongoDB) *DiscoveryService {
	return &DiscoveryService{
		profiles: db.Collection(database.CollectionDiscoveryProfiles),
	}
}

// GetOrCreate returns the discovery profile for a profile ID, creating an
// empty one on first read.
func (s *DiscoveryService) GetOrCreate(ctx context.Context, profileID string) (*models.DiscoveryProfile, error) {
	var profile models.DiscoveryProfile
	err := s.profiles.FindOne(ctx, bson.M{"profileId": profileID}).Decode(&profile)
	if err == nil {
		return &profile, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to load discovery profile: %w", err)
	}

	now := time.Now().UTC()
	profile = models.DiscoveryProfile{
		ID:                 uuid.NewString(),
		ProfileID:          profileID,
		Phase:              models.PhaseDiscovery,
		Answers:            map[string]models.DiscoveryAnswer{},
		SelectedProductIDs: []string{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if _, err := s.profiles.InsertOne(ctx, profile); err != nil {
		// Lost a create race; the winner's row is the one we want
		if mongo.IsDuplicateKeyError(err) {
			var winner models.DiscoveryProfile
			if ferr := s.profiles.FindOne(ctx, bson.M{"profileId": profileID}).Decode(&winner); ferr == nil {
				return &winner, nil
			}
		}
		return nil, fmt.Errorf("failed to create discovery profile: %w", err)
	}
	return &profile, nil
}

// Update applies a partial patch, merging answers key-wise and replacing
// scalar fields outright. Same last-write-wins contract as sessions.
func (s *DiscoveryService) Update(ctx context.Context, profileID string, update *models.DiscoveryProfileUpdate) (*models.DiscoveryProfile, error) {
	profile, err := s.GetOrCreate(ctx, profileID)
	if err != nil {
		return nil, err
	}

	if update.Phase != nil && !models.IsValidPhase(*update.Phase) {
		return nil, fmt.Errorf("invalid phase %q", *update.Phase)
	}

	set := bson.M{"updatedAt": time.Now().UTC()}
	if update.CurrentQuestionIndex != nil {
		set["currentQuestionIndex"] = *update.CurrentQuestionIndex
	}
	if update.Phase != nil {
		set["phase"] = *update.Phase
	}
	if update.Answers != nil {
		set["answers"] = MergeAnswers(profile.Answers, update.Answers)
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

	var updated models.DiscoveryProfile
	err = s.profiles.FindOneAndUpdate(
		ctx,
		bson.M{"_id": profile.ID},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		return nil, fmt.Errorf("failed to update discovery profile: %w", err)
	}
	return &updated, nil
}

// MergeExtractedAnswers applies extraction output to the discovery profile.
func (s *DiscoveryService) MergeExtractedAnswers(ctx context.Context, profileID string, answers map[string]models.DiscoveryAnswer, roi *models.ROIInputs) error {
	profile, err := s.GetOrCreate(ctx, profileID)
	if err != nil {
		return err
	}

	set := bson.M{
		"answers":   MergeAnswers(profile.Answers, answers),
		"updatedAt": time.Now().UTC(),
	}
	if roi != nil {
		set["roiInputs"] = roi
	}

	_, err = s.profiles.UpdateOne(ctx, bson.M{"_id": profile.ID}, bson.M{"$set": set})
	return err
}
