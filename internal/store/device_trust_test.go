package store

import (
	"testing"
	"time"
)

func TestDeviceTrustCreateAndGetValid(t *testing.T) {
	db := setupTestDB(t)
	as := NewAccountStore(db)
	ds := NewDeviceTrustStore(db)

	a, _ := as.Create("a@example.com", "hash", false)

	d, err := ds.Create(a.ID)
	if err != nil {
		t.Fatalf("create device trust: %v", err)
	}
	if len(d.Token) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(d.Token))
	}

	got, err := ds.GetValid(d.Token, a.ID)
	if err != nil {
		t.Fatalf("get valid: %v", err)
	}
	if got == nil {
		t.Fatal("expected valid trust row")
	}
}

func TestDeviceTrustBoundToAccount(t *testing.T) {
	db := setupTestDB(t)
	as := NewAccountStore(db)
	ds := NewDeviceTrustStore(db)

	a, _ := as.Create("a@example.com", "hash", false)
	b, _ := as.Create("b@example.com", "hash", false)

	d, _ := ds.Create(a.ID)

	got, err := ds.GetValid(d.Token, b.ID)
	if err != nil {
		t.Fatalf("get valid: %v", err)
	}
	if got != nil {
		t.Error("trust token must not validate for a different account")
	}
}

func TestDeviceTrustExpiry(t *testing.T) {
	db := setupTestDB(t)
	as := NewAccountStore(db)
	ds := NewDeviceTrustStore(db)

	a, _ := as.Create("a@example.com", "hash", false)
	d, _ := ds.Create(a.ID)

	// Force the row into the past; expiry is elapsed time, not teardown.
	if _, err := db.Exec(`UPDATE device_trust SET expires_at = datetime('now', '-1 hour') WHERE id = ?`, d.ID); err != nil {
		t.Fatalf("age trust row: %v", err)
	}

	got, err := ds.GetValid(d.Token, a.ID)
	if err != nil {
		t.Fatalf("get valid: %v", err)
	}
	if got != nil {
		t.Error("expired trust must not validate")
	}

	n, err := ds.DeleteExpired()
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
}

func TestDeviceTrustTouchSlidesWindow(t *testing.T) {
	db := setupTestDB(t)
	as := NewAccountStore(db)
	ds := NewDeviceTrustStore(db)

	a, _ := as.Create("a@example.com", "hash", false)
	d, _ := ds.Create(a.ID)

	// Nearly expired, then touched: the window slides forward.
	if _, err := db.Exec(`UPDATE device_trust SET expires_at = datetime('now', '+1 minute') WHERE id = ?`, d.ID); err != nil {
		t.Fatalf("age trust row: %v", err)
	}
	if err := ds.Touch(d.ID); err != nil {
		t.Fatalf("touch: %v", err)
	}

	got, _ := ds.GetValid(d.Token, a.ID)
	if got == nil {
		t.Fatal("expected trust row after touch")
	}
	if time.Until(got.ExpiresAt) < 29*24*time.Hour {
		t.Errorf("expiry %v after touch, want full window restored", time.Until(got.ExpiresAt))
	}
}

func TestDeviceTrustRevokeScopedToAccount(t *testing.T) {
	db := setupTestDB(t)
	as := NewAccountStore(db)
	ds := NewDeviceTrustStore(db)

	a, _ := as.Create("a@example.com", "hash", false)
	b, _ := as.Create("b@example.com", "hash", false)
	d, _ := ds.Create(a.ID)

	// Wrong account: no effect.
	if err := ds.Revoke(b.ID, d.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if got, _ := ds.GetValid(d.Token, a.ID); got == nil {
		t.Fatal("trust should survive a foreign revoke attempt")
	}

	if err := ds.Revoke(a.ID, d.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if got, _ := ds.GetValid(d.Token, a.ID); got != nil {
		t.Error("trust should be gone after owner revoke")
	}
}

func TestDeviceTrustRevokeOthers(t *testing.T) {
	db := setupTestDB(t)
	as := NewAccountStore(db)
	ds := NewDeviceTrustStore(db)

	a, _ := as.Create("a@example.com", "hash", false)
	keep, _ := ds.Create(a.ID)
	other1, _ := ds.Create(a.ID)
	other2, _ := ds.Create(a.ID)

	n, err := ds.RevokeOthers(a.ID, keep.ID)
	if err != nil {
		t.Fatalf("revoke others: %v", err)
	}
	if n != 2 {
		t.Errorf("revoked = %d, want 2", n)
	}

	if got, _ := ds.GetValid(keep.Token, a.ID); got == nil {
		t.Error("current device must remain trusted")
	}
	if got, _ := ds.GetValid(other1.Token, a.ID); got != nil {
		t.Error("other device 1 must be revoked")
	}
	if got, _ := ds.GetValid(other2.Token, a.ID); got != nil {
		t.Error("other device 2 must be revoked")
	}
}
