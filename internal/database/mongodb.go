package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoDB wraps the MongoDB client and database
type MongoDB struct {
	client   *mongo.Client
	database *mongo.Database
	dbName   string
}

// Collection names
const (
	CollectionSessions          = "sessions"
	CollectionDiscoveryProfiles = "discovery_profiles"
	CollectionConversations     = "conversations"
	CollectionMessages          = "messages"
	CollectionOrders            = "orders"
	CollectionRobots            = "robots"
	CollectionProfiles          = "profiles"
	CollectionWebhookEvents     = "webhook_events"
)

// NewMongoDB creates a new MongoDB connection with connection pooling
func NewMongoDB(uri string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(30 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dbName := extractDBName(uri)
	if dbName == "" {
		dbName = "autopilot"
	}

	db := &MongoDB{
		client:   client,
		database: client.Database(dbName),
		dbName:   dbName,
	}

	log.Printf("✅ Connected to MongoDB database: %s", dbName)

	return db, nil
}

// extractDBName extracts the database name from MongoDB URI
func extractDBName(uri string) string {
	// mongodb://localhost:27017/autopilot?authSource=admin -> autopilot
	lastSlash := -1
	questionMark := -1

	for i, c := range uri {
		if c == '/' {
			lastSlash = i
		}
		if c == '?' && questionMark == -1 {
			questionMark = i
		}
	}

	if lastSlash != -1 {
		start := lastSlash + 1
		end := len(uri)
		if questionMark != -1 && questionMark > lastSlash {
			end = questionMark
		}
		if start < end {
			dbName := uri[start:end]
			if dbName != "" {
				return dbName
			}
		}
	}

	return "autopilot"
}

// Initialize creates indexes for all collections
func (m *MongoDB) Initialize(ctx context.Context) error {
	log.Println("📦 Initializing MongoDB indexes...")

	// Sessions: token lookup on every request, expiry sweep scans expiresAt
	if err := m.createIndexes(ctx, CollectionSessions, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sessionToken", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "expiresAt", Value: 1}}},
		{Keys: bson.D{{Key: "claimedByProfileId", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create sessions indexes: %w", err)
	}

	// One discovery profile per profile
	if err := m.createIndexes(ctx, CollectionDiscoveryProfiles, []mongo.IndexModel{
		{Keys: bson.D{{Key: "profileId", Value: 1}}, Options: options.Index().SetUnique(true)},
	}); err != nil {
		return fmt.Errorf("failed to create discovery_profiles indexes: %w", err)
	}

	// Conversations: owner-scoped listing sorted by recency
	if err := m.createIndexes(ctx, CollectionConversations, []mongo.IndexModel{
		{Keys: bson.D{{Key: "profileId", Value: 1}, {Key: "updatedAt", Value: -1}}},
		{Keys: bson.D{{Key: "sessionId", Value: 1}, {Key: "updatedAt", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("failed to create conversations indexes: %w", err)
	}

	// Messages: ordered log per conversation
	if err := m.createIndexes(ctx, CollectionMessages, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "createdAt", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create messages indexes: %w", err)
	}

	// Orders: owner lookups plus webhook lookup by checkout session
	if err := m.createIndexes(ctx, CollectionOrders, []mongo.IndexModel{
		{Keys: bson.D{{Key: "profileId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "sessionId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "stripeCheckoutSessionId", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create orders indexes: %w", err)
	}

	// Robots: catalog filters
	if err := m.createIndexes(ctx, CollectionRobots, []mongo.IndexModel{
		{Keys: bson.D{{Key: "active", Value: 1}, {Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "sku", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create robots indexes: %w", err)
	}

	// Profiles: auth subject lookup
	if err := m.createIndexes(ctx, CollectionProfiles, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create profiles indexes: %w", err)
	}

	// Webhook events: unique eventId makes replayed deliveries no-ops
	if err := m.createIndexes(ctx, CollectionWebhookEvents, []mongo.IndexModel{
		{Keys: bson.D{{Key: "eventId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "receivedAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(30 * 86400)},
	}); err != nil {
		return fmt.Errorf("failed to create webhook_events indexes: %w", err)
	}

	log.Println("✅ MongoDB indexes initialized successfully")
	return nil
}

// createIndexes creates indexes for a collection
func (m *MongoDB) createIndexes(ctx context.Context, collectionName string, indexes []mongo.IndexModel) error {
	collection := m.database.Collection(collectionName)
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// Collection returns a collection handle
func (m *MongoDB) Collection(name string) *mongo.Collection {
	return m.database.Collection(name)
}

// Client returns the underlying MongoDB client
func (m *MongoDB) Client() *mongo.Client {
	return m.client
}

// Database returns the underlying MongoDB database
func (m *MongoDB) Database() *mongo.Database {
	return m.database
}

// Close closes the MongoDB connection
func (m *MongoDB) Close(ctx context.Context) error {
	log.Println("🔌 Closing MongoDB connection...")
	return m.client.Disconnect(ctx)
}

// Ping checks if the database connection is alive
func (m *MongoDB) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// WithTransaction executes a function within a transaction
func (m *MongoDB) WithTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	return err
}
