package store

import (
	"testing"
	"time"
)

func TestCommunicationsGetOrCreate(t *testing.T) {
	db := setupTestDB(t)
	as := NewAccountStore(db)
	cs := NewCommunicationsStore(db)

	a, _ := as.Create("a@example.com", "hash", false)

	c, err := cs.GetOrCreate(a.ID)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if c.RegistrationReminders != 0 || c.TrialReminders != 0 {
		t.Errorf("fresh counters = %d/%d, want 0/0", c.RegistrationReminders, c.TrialReminders)
	}
	if c.AgreedTerms != nil {
		t.Error("fresh row should not have agreed terms")
	}

	again, err := cs.GetOrCreate(a.ID)
	if err != nil {
		t.Fatalf("get or create again: %v", err)
	}
	if again.ID != c.ID {
		t.Errorf("second call returned row %d, want %d", again.ID, c.ID)
	}
}

func TestCommunicationsSetAgreedTerms(t *testing.T) {
	db := setupTestDB(t)
	as := NewAccountStore(db)
	cs := NewCommunicationsStore(db)

	a, _ := as.Create("a@example.com", "hash", false)

	at := time.Now().UTC().Truncate(time.Second)
	if err := cs.SetAgreedTerms(a.ID, at); err != nil {
		t.Fatalf("set agreed terms: %v", err)
	}

	c, _ := cs.GetOrCreate(a.ID)
	if c.AgreedTerms == nil {
		t.Fatal("expected agreed terms timestamp")
	}
	if !c.AgreedTerms.Equal(at) {
		t.Errorf("agreed terms = %v, want %v", c.AgreedTerms, at)
	}
}

func TestCommunicationsReminderCounter(t *testing.T) {
	db := setupTestDB(t)
	as := NewAccountStore(db)
	cs := NewCommunicationsStore(db)

	a, _ := as.Create("a@example.com", "hash", false)

	for want := 1; want <= 3; want++ {
		n, err := cs.IncrementRegistrationReminders(a.ID)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if n != want {
			t.Errorf("counter = %d, want %d", n, want)
		}
	}
}

func TestListNeedingRegistrationReminder(t *testing.T) {
	db := setupTestDB(t)
	as := NewAccountStore(db)
	cs := NewCommunicationsStore(db)

	fresh, _ := as.Create("fresh@example.com", "hash", false)
	nagged, _ := as.Create("nagged@example.com", "hash", false)
	done, _ := as.Create("done@example.com", "hash", false)
	if err := as.MarkEmailVerified(done.ID); err != nil {
		t.Fatalf("mark verified: %v", err)
	}

	// Exhaust the nagged account's allowance.
	for i := 0; i < 3; i++ {
		if _, err := cs.IncrementRegistrationReminders(nagged.ID); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}

	due, err := cs.ListNeedingRegistrationReminder(3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("len(due) = %d, want 1", len(due))
	}
	if due[0].ID != fresh.ID {
		t.Errorf("due account = %d, want %d", due[0].ID, fresh.ID)
	}
}
