package model

import "time"

type Account struct {
	ID                    int64      `json:"id"`
	Email                 string     `json:"email"`
	PasswordHash          string     `json:"-"`
	FirstName             string     `json:"first_name"`
	LastName              string     `json:"last_name"`
	Phone                 *string    `json:"phone"`
	FirmID                *int64     `json:"firm_id"`
	IsOperator            bool       `json:"is_operator"`
	IsAdmin               bool       `json:"is_admin"`
	Is2FA                 bool       `json:"is_2fa"`
	IsVerified            bool       `json:"is_verified"`
	VerificationCode      *string    `json:"-"`
	IsEmailVerified       bool       `json:"is_email_verified"`
	EmailVerificationCode *string    `json:"-"`
	PreviousEmail         *string    `json:"previous_email"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// RequiresPhoneVerification reports whether the account must pass the phone
// verification step before reaching protected views: either no phone is on
// file yet, or two-factor is enabled and the current code was never confirmed.
func (a *Account) RequiresPhoneVerification() bool {
	if a.Phone == nil || *a.Phone == "" {
		return true
	}
	return a.Is2FA && !a.IsVerified
}

type LoginRecord struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"account_id"`
	IP        string    `json:"ip"`
	CreatedAt time.Time `json:"created_at"`
}

// Communications tracks per-account notification counters so reminder
// dispatch stays at-most-N per category.
type Communications struct {
	ID                    int64      `json:"id"`
	AccountID             int64      `json:"account_id"`
	RegistrationReminders int        `json:"registration_reminders"`
	TrialReminders        int        `json:"trial_reminders"`
	AgreedTerms           *time.Time `json:"agreed_terms"`
}
