package model

import "time"

type Session struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token"`
	AccountID int64     `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// DeviceTrust records that a browser completed a verification challenge
// recently enough to skip repeating it. Expiry is a sliding inactivity
// window: each authenticated request pushes it forward.
type DeviceTrust struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token"`
	AccountID int64     `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Trusted reports whether the trust assertion is still valid at the given
// instant. Expiry is a property of elapsed time, not an explicit teardown.
func (d *DeviceTrust) Trusted(now time.Time) bool {
	return d.ExpiresAt.After(now)
}
