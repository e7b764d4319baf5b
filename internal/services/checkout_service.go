package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"autopilot/internal/database"
	"autopilot/internal/models"
)

// Checkout errors
var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrProductUnavailable = errors.New("product unavailable")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
)

// CheckoutService creates Stripe checkout sessions for robot leases and
// processes the webhook events that settle them.
type CheckoutService struct {
	api           *client.API
	webhookSecret string
	orders        *mongo.Collection
	webhookEvents *mongo.Collection
	robots        *RobotService
	metrics       *Metrics
	successURL    string
	cancelURL     string
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(secretKey, webhookSecret, successURL, cancelURL string, db *database.MongoDB, robots *RobotService, metrics *Metrics) *CheckoutService {
	api := &client.API{}
	api.Init(secretKey, nil)

	return &CheckoutService{
		api:           api,
		webhookSecret: webhookSecret,
		orders:        db.Collection(database.CollectionOrders),
		webhookEvents: db.Collection(database.CollectionWebhookEvents),
		robots:        robots,
		metrics:       metrics,
		successURL:    successURL,
		cancelURL:     cancelURL,
	}
}

// CheckoutRequest is the handler-level input for starting a checkout.
type CheckoutRequest struct {
	RobotID  string `json:"robot_id"`
	Quantity int    `json:"quantity"`
}

// CreateCheckoutSession inserts a pending order, opens a subscription-mode
// Stripe checkout session for the robot's lease price, and returns the order
// with its redirect URL. A Stripe failure cancels the order so retries start
// clean.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, owner Owner, req CheckoutRequest) (*models.Order, error) {
	if !owner.Valid() {
		return nil, ErrInvalidOwner
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	robot, err := s.robots.Get(ctx, req.RobotID)
	if err != nil {
		return nil, err
	}
	if !robot.Active || robot.StripePriceID == "" {
		return nil, ErrProductUnavailable
	}

	now := time.Now().UTC()
	order := &models.Order{
		ID:          uuid.NewString(),
		RobotID:     robot.ID,
		RobotName:   robot.Name,
		Quantity:    req.Quantity,
		AmountCents: robot.MonthlyLeaseCents * int64(req.Quantity),
		Currency:    "usd",
		Status:      models.OrderStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if owner.ProfileID != "" {
		order.ProfileID = &owner.ProfileID
	} else {
		order.SessionID = &owner.SessionID
	}

	// Pending order goes in first so a crashed Stripe call leaves a trail
	if _, err := s.orders.InsertOne(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(s.successURL),
		CancelURL:  stripe.String(s.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(robot.StripePriceID),
				Quantity: stripe.Int64(int64(req.Quantity)),
			},
		},
	}
	params.AddMetadata("order_id", order.ID)
	params.AddMetadata("robot_id", robot.ID)

	checkoutSession, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		s.markOrderStatus(ctx, order.ID, models.OrderStatusCancelled, "stripe checkout creation failed")
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	update := bson.M{
		"status":                  models.OrderStatusPaymentPending,
		"stripeCheckoutSessionId": checkoutSession.ID,
		"checkoutUrl":             checkoutSession.URL,
		"updatedAt":               time.Now().UTC(),
	}
	var updated models.Order
	err = s.orders.FindOneAndUpdate(ctx,
		bson.M{"_id": order.ID},
		bson.M{"$set": update},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		return nil, fmt.Errorf("failed to attach checkout session to order: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordCheckoutSession()
	}
	log.Printf("✅ Checkout session %s opened for order %s (%s x%d)", checkoutSession.ID, order.ID, robot.Name, req.Quantity)
	return &updated, nil
}

func (s *CheckoutService) markOrderStatus(ctx context.Context, orderID, status, reason string) {
	set := bson.M{"status": status, "updatedAt": time.Now().UTC()}
	if reason != "" {
		set["failureReason"] = reason
	}
	if _, err := s.orders.UpdateOne(ctx, bson.M{"_id": orderID}, bson.M{"$set": set}); err != nil {
		log.Printf("❌ Failed to mark order %s as %s: %v", orderID, status, err)
	}
}

// GetOrder loads an order the owner can see.
func (s *CheckoutService) GetOrder(ctx context.Context, id string, owner Owner) (*models.Order, error) {
	var order models.Order
	err := s.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if !ownerOwnsOrder(owner, &order) {
		return nil, ErrOrderNotFound
	}
	return &order, nil
}

// ListOrders returns the owner's orders, newest first.
func (s *CheckoutService) ListOrders(ctx context.Context, owner Owner) ([]models.Order, error) {
	if !owner.Valid() {
		return nil, ErrInvalidOwner
	}

	filter := bson.M{"sessionId": owner.SessionID}
	if owner.ProfileID != "" {
		filter = bson.M{"profileId": owner.ProfileID}
	}

	cursor, err := s.orders.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, nil
}

func ownerOwnsOrder(owner Owner, order *models.Order) bool {
	if owner.ProfileID != "" {
		return order.ProfileID != nil && *order.ProfileID == owner.ProfileID
	}
	if owner.SessionID != "" {
		// Transferred orders belong to the profile now, even though the
		// session reference remains for audit
		return order.ProfileID == nil && order.SessionID != nil && *order.SessionID == owner.SessionID
	}
	return false
}

// VerifyWebhook checks the Stripe-Signature header and parses the event.
// API version drift between the dashboard and the SDK is tolerated; the
// handler only reads stable checkout session fields.
func (s *CheckoutService) VerifyWebhook(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}

// errDuplicateEvent marks a webhook delivery that was already processed.
var errDuplicateEvent = errors.New("webhook event already processed")

// webhookStore is the storage surface the webhook orchestration needs.
type webhookStore interface {
	recordEvent(ctx context.Context, event stripe.Event) (string, error)
	discardEvent(ctx context.Context, recordID string)
	settleOrder(ctx context.Context, event stripe.Event, checkout *stripe.CheckoutSession, status, reason string) (string, error)
	linkEvent(ctx context.Context, recordID, orderID string)
}

// settlementForEvent maps a Stripe event type to the order status it settles.
func settlementForEvent(eventType stripe.EventType) (status, reason string, handled bool) {
	switch eventType {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		return models.OrderStatusCompleted, "", true
	case "checkout.session.async_payment_failed":
		return models.OrderStatusFailed, "payment failed", true
	case "checkout.session.expired":
		return models.OrderStatusExpired, "checkout session expired", true
	default:
		return "", "", false
	}
}

// processWebhookEvent runs one delivery through the idempotency gate and the
// order settlement. A failed settlement discards the idempotency record so
// Stripe's retry of the same event gets processed instead of acknowledged.
func processWebhookEvent(ctx context.Context, store webhookStore, metrics *Metrics, event stripe.Event) error {
	recordID, err := store.recordEvent(ctx, event)
	if err != nil {
		if errors.Is(err, errDuplicateEvent) {
			log.Printf("🔁 Duplicate webhook event %s, acknowledging without processing", event.ID)
			if metrics != nil {
				metrics.RecordWebhookEvent(string(event.Type), "duplicate")
			}
			return nil
		}
		return err
	}

	status, reason, handled := settlementForEvent(event.Type)
	if !handled {
		log.Printf("ℹ️  Ignoring webhook event type %s", event.Type)
		if metrics != nil {
			metrics.RecordWebhookEvent(string(event.Type), "ignored")
		}
		return nil
	}

	var checkoutSession stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &checkoutSession); err != nil {
		store.discardEvent(ctx, recordID)
		return fmt.Errorf("failed to parse checkout session from event: %w", err)
	}

	orderID, err := store.settleOrder(ctx, event, &checkoutSession, status, reason)
	if err != nil {
		store.discardEvent(ctx, recordID)
		return err
	}

	// Tie the event to the order for audit
	if orderID != "" {
		store.linkEvent(ctx, recordID, orderID)
	}

	if metrics != nil {
		metrics.RecordWebhookEvent(string(event.Type), "processed")
	}
	log.Printf("✅ Webhook %s settled checkout %s -> %s", event.Type, checkoutSession.ID, status)
	return nil
}

// HandleWebhookEvent processes a verified Stripe event exactly once. The
// unique eventId insert is the idempotency gate: a duplicate delivery hits
// the index and returns success without touching the order again.
func (s *CheckoutService) HandleWebhookEvent(ctx context.Context, event stripe.Event) error {
	return processWebhookEvent(ctx, s, s.metrics, event)
}

func (s *CheckoutService) recordEvent(ctx context.Context, event stripe.Event) (string, error) {
	record := models.WebhookEvent{
		ID:         uuid.NewString(),
		EventID:    event.ID,
		EventType:  string(event.Type),
		ReceivedAt: time.Now().UTC(),
	}
	if _, err := s.webhookEvents.InsertOne(ctx, record); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", errDuplicateEvent
		}
		return "", fmt.Errorf("failed to record webhook event: %w", err)
	}
	return record.ID, nil
}

func (s *CheckoutService) discardEvent(ctx context.Context, recordID string) {
	if _, err := s.webhookEvents.DeleteOne(ctx, bson.M{"_id": recordID}); err != nil {
		log.Printf("❌ Failed to discard webhook event record %s: %v", recordID, err)
	}
}

func (s *CheckoutService) settleOrder(ctx context.Context, event stripe.Event, checkout *stripe.CheckoutSession, status, reason string) (string, error) {
	orderID := checkout.Metadata["order_id"]
	filter := bson.M{"stripeCheckoutSessionId": checkout.ID}
	if orderID != "" {
		filter = bson.M{"_id": orderID}
	}

	set := bson.M{"status": status, "updatedAt": time.Now().UTC()}
	if reason != "" {
		set["failureReason"] = reason
	}
	if checkout.Customer != nil {
		set["stripeCustomerId"] = checkout.Customer.ID
	}

	res, err := s.orders.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return "", fmt.Errorf("failed to settle order: %w", err)
	}
	if res.MatchedCount == 0 {
		log.Printf("⚠️  Webhook event %s references unknown order (checkout %s)", event.ID, checkout.ID)
	}
	return orderID, nil
}

func (s *CheckoutService) linkEvent(ctx context.Context, recordID, orderID string) {
	if _, err := s.webhookEvents.UpdateOne(ctx, bson.M{"_id": recordID}, bson.M{"$set": bson.M{"orderId": orderID}}); err != nil {
		log.Printf("⚠️  Failed to link webhook event %s to order %s: %v", recordID, orderID, err)
	}
}
