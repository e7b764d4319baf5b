package models

import "time"

// Order statuses
const (
	OrderStatusPending        = "pending"
	OrderStatusPaymentPending = "payment_pending"
	OrderStatusCompleted      = "completed"
	OrderStatusFailed         = "failed"
	OrderStatusExpired        = "expired"
	OrderStatusCancelled      = "cancelled"
)

// Order ties a checkout attempt to its owner and the Stripe checkout session.
// SessionID is kept after a claim for audit; ProfileID identifies the owner
// once set.
type Order struct {
	ID                      string    `bson:"_id" json:"id"`
	SessionID               *string   `bson:"sessionId,omitempty" json:"session_id,omitempty"`
	ProfileID               *string   `bson:"profileId,omitempty" json:"profile_id,omitempty"`
	RobotID                 string    `bson:"robotId" json:"robot_id"`
	RobotName               string    `bson:"robotName" json:"robot_name"`
	Quantity                int       `bson:"quantity" json:"quantity"`
	AmountCents             int64     `bson:"amountCents" json:"amount_cents"`
	Currency                string    `bson:"currency" json:"currency"`
	Status                  string    `bson:"status" json:"status"`
	StripeCheckoutSessionID string    `bson:"stripeCheckoutSessionId,omitempty" json:"-"`
	StripeCustomerID        string    `bson:"stripeCustomerId,omitempty" json:"-"`
	CheckoutURL             string    `bson:"checkoutUrl,omitempty" json:"checkout_url,omitempty"`
	FailureReason           string    `bson:"failureReason,omitempty" json:"failure_reason,omitempty"`
	CreatedAt               time.Time `bson:"createdAt" json:"created_at"`
	UpdatedAt               time.Time `bson:"updatedAt" json:"updated_at"`
}

// WebhookEvent records a processed Stripe event. The unique eventId index is
// what makes redelivered webhooks no-ops.
type WebhookEvent struct {
	ID         string    `bson:"_id" json:"id"`
	EventID    string    `bson:"eventId" json:"event_id"`
	EventType  string    `bson:"eventType" json:"event_type"`
	OrderID    string    `bson:"orderId,omitempty" json:"order_id,omitempty"`
	ReceivedAt time.Time `bson:"receivedAt" json:"received_at"`
}
