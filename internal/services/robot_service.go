package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"autopilot/internal/database"
	"autopilot/internal/models"
)

// Robot errors
var ErrRobotNotFound = errors.New("robot not found")

// RobotFilter narrows catalog listings.
type RobotFilter struct {
	Category string
	Surface  string
	Mode     string
	MaxLease int64 // cents, 0 = no cap
	Query    string
}

// RobotService serves the robot catalog. Reads go through a short TTL cache
// since the catalog changes rarely and the list endpoint is public.
type RobotService struct {
	robots *mongo.Collection
	rag    *RAGService
	cache  *cache.Cache
}

// NewRobotService creates a new catalog service
func NewRobotService(db *database.MongoDB, rag *RAGService) *RobotService {
	return &RobotService{
		robots: db.Collection(database.CollectionRobots),
		rag:    rag,
		cache:  cache.New(5*time.Minute, 10*time.Minute),
	}
}

// Get loads one robot by ID.
func (s *RobotService) Get(ctx context.Context, id string) (*models.Robot, error) {
	if cached, found := s.cache.Get("robot:" + id); found {
		robot := cached.(models.Robot)
		return &robot, nil
	}

	var robot models.Robot
	err := s.robots.FindOne(ctx, bson.M{"_id": id}).Decode(&robot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRobotNotFound
		}
		return nil, fmt.Errorf("failed to load robot: %w", err)
	}

	s.cache.Set("robot:"+id, robot, cache.DefaultExpiration)
	return &robot, nil
}

// List returns active robots matching the filter. A non-empty Query runs a
// semantic search first and orders results by vector score; search being
// unavailable degrades to the plain filtered listing.
func (s *RobotService) List(ctx context.Context, filter RobotFilter) ([]models.Robot, error) {
	robots, err := s.listFiltered(ctx, filter)
	if err != nil {
		return nil, err
	}

	if filter.Query == "" || s.rag == nil || !s.rag.Enabled() {
		return robots, nil
	}

	matches, err := s.rag.Search(ctx, filter.Query, 10, filter.Category, filter.Surface)
	if err != nil {
		log.Printf("⚠️  Semantic search unavailable, returning filtered listing: %v", err)
		return robots, nil
	}

	scores := make(map[string]float64, len(matches))
	for _, m := range matches {
		scores[m.RobotID] = m.Score
	}

	ranked := robots[:0]
	for _, r := range robots {
		if _, hit := scores[r.ID]; hit {
			ranked = append(ranked, r)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i].ID] > scores[ranked[j].ID]
	})
	return ranked, nil
}

func (s *RobotService) listFiltered(ctx context.Context, filter RobotFilter) ([]models.Robot, error) {
	query := bson.M{"active": true}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.Surface != "" {
		query["surfaces"] = filter.Surface
	}
	if filter.Mode != "" {
		query["modes"] = filter.Mode
	}
	if filter.MaxLease > 0 {
		query["monthlyLeaseCents"] = bson.M{"$lte": filter.MaxLease}
	}

	cursor, err := s.robots.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "monthlyLeaseCents", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list robots: %w", err)
	}

	robots := []models.Robot{}
	if err := cursor.All(ctx, &robots); err != nil {
		return nil, fmt.Errorf("failed to decode robots: %w", err)
	}
	return robots, nil
}

// FilterOptions lists the distinct categories, surfaces and modes across
// active robots, cached like the listings.
func (s *RobotService) FilterOptions(ctx context.Context) (map[string][]string, error) {
	if cached, found := s.cache.Get("robot:filters"); found {
		return cached.(map[string][]string), nil
	}

	opts := map[string][]string{}
	for field, key := range map[string]string{"category": "categories", "surfaces": "surfaces", "modes": "modes"} {
		values, err := s.robots.Distinct(ctx, field, bson.M{"active": true})
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", key, err)
		}
		strs := make([]string, 0, len(values))
		for _, v := range values {
			if str, ok := v.(string); ok {
				strs = append(strs, str)
			}
		}
		sort.Strings(strs)
		opts[key] = strs
	}

	s.cache.Set("robot:filters", opts, cache.DefaultExpiration)
	return opts, nil
}
