package models

import "time"

// Robot is one catalog entry. Prices are integer cents; the Stripe product
// and price IDs come from the catalog seeding, not from runtime calls.
type Robot struct {
	ID                 string    `bson:"_id" json:"id"`
	SKU                string    `bson:"sku" json:"sku"`
	Name               string    `bson:"name" json:"name"`
	Description        string    `bson:"description" json:"description"`
	Category           string    `bson:"category" json:"category"`
	Surfaces           []string  `bson:"surfaces" json:"surfaces"`
	Modes              []string  `bson:"modes" json:"modes"`
	CoverageSqftPerHr  int       `bson:"coverageSqftPerHr" json:"coverage_sqft_per_hr"`
	RuntimeMinutes     int       `bson:"runtimeMinutes" json:"runtime_minutes"`
	MonthlyLeaseCents  int64     `bson:"monthlyLeaseCents" json:"monthly_lease_cents"`
	PurchasePriceCents int64     `bson:"purchasePriceCents" json:"purchase_price_cents"`
	StripeProductID    string    `bson:"stripeProductId" json:"-"`
	StripePriceID      string    `bson:"stripePriceId" json:"-"`
	ImageURL           string    `bson:"imageUrl,omitempty" json:"image_url,omitempty"`
	Active             bool      `bson:"active" json:"active"`
	CreatedAt          time.Time `bson:"createdAt" json:"created_at"`
	UpdatedAt          time.Time `bson:"updatedAt" json:"updated_at"`
}
