package model

import "time"

type Firm struct {
	ID                   int64      `json:"id"`
	Name                 string     `json:"name"`
	BossID               *int64     `json:"boss_id"`
	StripeCustomerID     *string    `json:"stripe_customer_id"`
	StripeSubscriptionID *string    `json:"stripe_subscription_id"`
	IsPaid               bool       `json:"is_paid"`
	TrialEnd             *time.Time `json:"trial_end"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// HasBillingSetup reports whether the firm ever completed checkout.
func (f *Firm) HasBillingSetup() bool {
	return f.StripeCustomerID != nil && *f.StripeCustomerID != ""
}

// SubscriptionActive reports whether the firm is in good billing standing at
// the given instant: paid up, or still inside the trial window.
func (f *Firm) SubscriptionActive(now time.Time) bool {
	if f.IsPaid {
		return true
	}
	return f.TrialEnd != nil && f.TrialEnd.After(now)
}

type Invite struct {
	ID        int64      `json:"id"`
	Token     string     `json:"token"`
	Email     string     `json:"email"`
	FirmID    int64      `json:"firm_id"`
	Role      string     `json:"role"` // "operator" or "client"
	IsAdmin   bool       `json:"is_admin"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
	CreatedAt time.Time  `json:"created_at"`
}
