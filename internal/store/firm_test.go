package store

import (
	"testing"
	"time"
)

func TestFirmCreateDefaults(t *testing.T) {
	fs := NewFirmStore(setupTestDB(t))

	f, err := fs.Create("Acme Tax")
	if err != nil {
		t.Fatalf("create firm: %v", err)
	}
	if f.Name != "Acme Tax" {
		t.Errorf("name = %q, want %q", f.Name, "Acme Tax")
	}
	if f.HasBillingSetup() {
		t.Error("new firm must have no billing setup")
	}
	if f.SubscriptionActive(time.Now()) {
		t.Error("firm with no subscription is never active")
	}
}

func TestFirmSetBilling(t *testing.T) {
	db := setupTestDB(t)
	fs := NewFirmStore(db)
	as := NewAccountStore(db)

	f, _ := fs.Create("Acme Tax")
	boss, _ := as.Create("boss@example.com", "hash", true)

	trialEnd := time.Now().UTC().Add(30 * 24 * time.Hour).Truncate(time.Second)
	if err := fs.SetBilling(f.ID, boss.ID, "cus_123", "sub_456", true, trialEnd); err != nil {
		t.Fatalf("set billing: %v", err)
	}

	got, _ := fs.GetByID(f.ID)
	if got.BossID == nil || *got.BossID != boss.ID {
		t.Error("boss must be recorded")
	}
	if !got.HasBillingSetup() {
		t.Error("expected billing setup after checkout")
	}
	if got.StripeSubscriptionID == nil || *got.StripeSubscriptionID != "sub_456" {
		t.Error("subscription id must be recorded")
	}
	if !got.SubscriptionActive(time.Now()) {
		t.Error("paid firm must be active")
	}
}

func TestFirmActiveDuringTrialOnly(t *testing.T) {
	db := setupTestDB(t)
	fs := NewFirmStore(db)
	as := NewAccountStore(db)

	f, _ := fs.Create("Acme Tax")
	boss, _ := as.Create("boss@example.com", "hash", true)

	trialEnd := time.Now().UTC().Add(14 * 24 * time.Hour)
	if err := fs.SetBilling(f.ID, boss.ID, "cus_123", "sub_456", false, trialEnd); err != nil {
		t.Fatalf("set billing: %v", err)
	}

	got, _ := fs.GetByID(f.ID)
	if !got.SubscriptionActive(time.Now()) {
		t.Error("firm inside trial window must be active")
	}
	if got.SubscriptionActive(time.Now().Add(31 * 24 * time.Hour)) {
		t.Error("firm past trial end, unpaid, must be inactive")
	}

	// Paying after expiry reactivates.
	if err := fs.SetPaid("cus_123", true); err != nil {
		t.Fatalf("set paid: %v", err)
	}
	got, _ = fs.GetByID(f.ID)
	if !got.SubscriptionActive(time.Now().Add(31 * 24 * time.Hour)) {
		t.Error("paid firm must be active regardless of trial expiry")
	}
}

func TestFirmGetByStripeCustomerID(t *testing.T) {
	db := setupTestDB(t)
	fs := NewFirmStore(db)
	as := NewAccountStore(db)

	f, _ := fs.Create("Acme Tax")
	boss, _ := as.Create("boss@example.com", "hash", true)
	fs.SetBilling(f.ID, boss.ID, "cus_123", "sub_456", false, time.Now())

	got, err := fs.GetByStripeCustomerID("cus_123")
	if err != nil {
		t.Fatalf("get by customer id: %v", err)
	}
	if got == nil || got.ID != f.ID {
		t.Fatal("expected firm by stripe customer id")
	}

	missing, err := fs.GetByStripeCustomerID("cus_nope")
	if err != nil {
		t.Fatalf("get by customer id: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown customer id")
	}
}
