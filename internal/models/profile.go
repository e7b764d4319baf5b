package models

import "time"

// Profile is the read-side record for an authenticated user. Signup, login
// and password management live in the external auth provider; this row only
// mirrors what the backend needs for ownership and checkout.
type Profile struct {
	ID               string    `bson:"_id" json:"id"`
	UserID           string    `bson:"userId" json:"user_id"`
	Email            string    `bson:"email" json:"email"`
	FullName         string    `bson:"fullName,omitempty" json:"full_name,omitempty"`
	CompanyName      string    `bson:"companyName,omitempty" json:"company_name,omitempty"`
	StripeCustomerID string    `bson:"stripeCustomerId,omitempty" json:"-"`
	CreatedAt        time.Time `bson:"createdAt" json:"created_at"`
	UpdatedAt        time.Time `bson:"updatedAt" json:"updated_at"`
}
