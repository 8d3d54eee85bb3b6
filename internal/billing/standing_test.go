package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rcalloway/taxdesk/internal/model"
)

type fakeFirms struct {
	firm *model.Firm
	err  error
}

func (f *fakeFirms) GetByID(id int64) (*model.Firm, error) {
	return f.firm, f.err
}

func strPtr(s string) *string { return &s }

func TestStandingPaidFirm(t *testing.T) {
	svc := NewStandingService(&fakeFirms{firm: &model.Firm{
		ID:               1,
		IsPaid:           true,
		StripeCustomerID: strPtr("cus_123"),
	}})

	st, err := svc.Standing(context.Background(), 1)
	if err != nil {
		t.Fatalf("standing: %v", err)
	}
	if !st.Active || !st.HasBillingSetup {
		t.Errorf("standing = %+v, want active with billing setup", st)
	}
}

func TestStandingTrialFirm(t *testing.T) {
	trialEnd := time.Now().Add(10 * 24 * time.Hour)
	svc := NewStandingService(&fakeFirms{firm: &model.Firm{
		ID:               1,
		IsPaid:           false,
		TrialEnd:         &trialEnd,
		StripeCustomerID: strPtr("cus_123"),
	}})

	st, err := svc.Standing(context.Background(), 1)
	if err != nil {
		t.Fatalf("standing: %v", err)
	}
	if !st.Active {
		t.Error("firm inside trial window should be active")
	}
}

func TestStandingLapsedTrial(t *testing.T) {
	trialEnd := time.Now().Add(-time.Hour)
	svc := NewStandingService(&fakeFirms{firm: &model.Firm{
		ID:               1,
		IsPaid:           false,
		TrialEnd:         &trialEnd,
		StripeCustomerID: strPtr("cus_123"),
	}})

	st, _ := svc.Standing(context.Background(), 1)
	if st.Active {
		t.Error("lapsed trial without payment should be inactive")
	}
	if !st.HasBillingSetup {
		t.Error("firm with a customer ID has billing setup")
	}
}

func TestStandingNoBillingSetup(t *testing.T) {
	svc := NewStandingService(&fakeFirms{firm: &model.Firm{ID: 1}})

	st, _ := svc.Standing(context.Background(), 1)
	if st.Active || st.HasBillingSetup {
		t.Errorf("standing = %+v, want inactive without billing setup", st)
	}
}

func TestStandingMissingFirm(t *testing.T) {
	svc := NewStandingService(&fakeFirms{})

	if _, err := svc.Standing(context.Background(), 99); err == nil {
		t.Fatal("expected error for missing firm")
	}
}

func TestStandingLookupError(t *testing.T) {
	svc := NewStandingService(&fakeFirms{err: errors.New("db closed")})

	if _, err := svc.Standing(context.Background(), 1); err == nil {
		t.Fatal("expected error from lookup failure")
	}
}
