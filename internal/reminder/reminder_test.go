package reminder

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/rcalloway/taxdesk/internal/model"
)

type fakeComms struct {
	candidates []*model.Account
	listErr    error
	counts     map[int64]int
}

func (f *fakeComms) ListNeedingRegistrationReminder(max int) ([]*model.Account, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var due []*model.Account
	for _, a := range f.candidates {
		if f.counts[a.ID] < max {
			due = append(due, a)
		}
	}
	return due, nil
}

func (f *fakeComms) IncrementRegistrationReminders(accountID int64) (int, error) {
	if f.counts == nil {
		f.counts = make(map[int64]int)
	}
	f.counts[accountID]++
	return f.counts[accountID], nil
}

type fakeIssuer struct {
	err error
}

func (f *fakeIssuer) RotateEmailVerificationCode(id int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "FRESHCODE0000000", nil
}

type fakeSender struct {
	configured bool
	err        error
	sent       []string
}

func (f *fakeSender) Configured() bool { return f.configured }
func (f *fakeSender) SendRegistrationReminder(toEmail, code string) error {
	f.sent = append(f.sent, toEmail)
	return f.err
}

func testScheduler(c *fakeComms, i *fakeIssuer, s *fakeSender) *Scheduler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewScheduler(c, i, s, logger)
}

func TestSweepSendsToCandidates(t *testing.T) {
	comms := &fakeComms{candidates: []*model.Account{
		{ID: 1, Email: "one@example.com"},
		{ID: 2, Email: "two@example.com"},
	}}
	sender := &fakeSender{configured: true}

	testScheduler(comms, &fakeIssuer{}, sender).Sweep()

	if len(sender.sent) != 2 {
		t.Fatalf("sent = %d, want 2", len(sender.sent))
	}
	if comms.counts[1] != 1 || comms.counts[2] != 1 {
		t.Errorf("counters = %v, want 1 each", comms.counts)
	}
}

func TestSweepCapsReminders(t *testing.T) {
	comms := &fakeComms{candidates: []*model.Account{
		{ID: 1, Email: "one@example.com"},
	}}
	sender := &fakeSender{configured: true}
	sched := testScheduler(comms, &fakeIssuer{}, sender)

	for i := 0; i < 5; i++ {
		sched.Sweep()
	}

	if len(sender.sent) != maxRegistrationReminders {
		t.Errorf("sent = %d, want %d", len(sender.sent), maxRegistrationReminders)
	}
}

func TestSweepCountsFailedDeliveries(t *testing.T) {
	comms := &fakeComms{candidates: []*model.Account{
		{ID: 1, Email: "one@example.com"},
	}}
	sender := &fakeSender{configured: true, err: errors.New("mailbox full")}

	sched := testScheduler(comms, &fakeIssuer{}, sender)
	sched.Sweep()

	// The attempt is consumed even though delivery failed.
	if comms.counts[1] != 1 {
		t.Errorf("counter = %d, want 1 after failed send", comms.counts[1])
	}
}

func TestSweepSkipsWhenUnconfigured(t *testing.T) {
	comms := &fakeComms{candidates: []*model.Account{
		{ID: 1, Email: "one@example.com"},
	}}
	sender := &fakeSender{configured: false}

	testScheduler(comms, &fakeIssuer{}, sender).Sweep()

	if len(sender.sent) != 0 {
		t.Errorf("sent = %d, want 0 when email is unconfigured", len(sender.sent))
	}
	if comms.counts[1] != 0 {
		t.Errorf("counter = %d, want 0", comms.counts[1])
	}
}

func TestSweepSkipsOnRotationFailure(t *testing.T) {
	comms := &fakeComms{candidates: []*model.Account{
		{ID: 1, Email: "one@example.com"},
	}}
	sender := &fakeSender{configured: true}

	testScheduler(comms, &fakeIssuer{err: errors.New("db closed")}, sender).Sweep()

	if len(sender.sent) != 0 {
		t.Error("no reminder should go out without a fresh code")
	}
}
