package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"autopilot/internal/database"
	"autopilot/internal/models"
)

// Profile errors
var ErrProfileNotFound = errors.New("profile not found")

// ProfileService is the read side of user profiles. Signup and login live in
// the external auth provider; rows here are created lazily from verified
// token claims.
type ProfileService struct {
	profiles *mongo.Collection
}

// NewProfileService creates a new profile service
func NewProfileService(db *database.MongoDB) *ProfileService {
	return &ProfileService{
		profiles: db.Collection(database.CollectionProfiles),
	}
}

// GetByUserID loads the profile for an auth subject.
func (s *ProfileService) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	err := s.profiles.FindOne(ctx, bson.M{"userId": userID}).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return &profile, nil
}

// EnsureProfile returns the profile for a verified token's subject, creating
// it on first sight.
func (s *ProfileService) EnsureProfile(ctx context.Context, userID, email string) (*models.Profile, error) {
	profile, err := s.GetByUserID(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, ErrProfileNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	created := models.Profile{
		ID:        uuid.NewString(),
		UserID:    userID,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.profiles.InsertOne(ctx, created); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return s.GetByUserID(ctx, userID)
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return &created, nil
}
