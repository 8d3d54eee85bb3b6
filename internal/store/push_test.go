package store

import "testing"

func TestPushUpsertReplacesEndpoint(t *testing.T) {
	db := setupTestDB(t)
	as := NewAccountStore(db)
	ps := NewPushStore(db)

	a, _ := as.Create("push@example.com", "hash", false)

	first, err := ps.Upsert(a.ID, "https://push.example/ep1", "p256-old", "auth-old")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	second, err := ps.Upsert(a.ID, "https://push.example/ep1", "p256-new", "auth-new")
	if err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	if second.ID != first.ID {
		t.Error("same endpoint must update in place, not insert")
	}
	if second.P256dhKey != "p256-new" || second.AuthKey != "auth-new" {
		t.Error("upsert must replace the keys")
	}

	subs, err := ps.ListByAccount(a.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 1 {
		t.Errorf("subscriptions = %d, want 1", len(subs))
	}
}

func TestPushDeleteByEndpoint(t *testing.T) {
	db := setupTestDB(t)
	as := NewAccountStore(db)
	ps := NewPushStore(db)

	a, _ := as.Create("push@example.com", "hash", false)
	ps.Upsert(a.ID, "https://push.example/ep1", "p", "k")
	ps.Upsert(a.ID, "https://push.example/ep2", "p", "k")

	if err := ps.DeleteByEndpoint("https://push.example/ep1"); err != nil {
		t.Fatalf("delete by endpoint: %v", err)
	}

	subs, err := ps.ListByAccount(a.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 1 || subs[0].Endpoint != "https://push.example/ep2" {
		t.Error("only the named endpoint should be removed")
	}
}
