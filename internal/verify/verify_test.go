package verify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/rcalloway/taxdesk/internal/model"
)

type fakeRotator struct {
	code  string
	calls int
	err   error
}

func (f *fakeRotator) RotateVerificationCode(id int64) (string, error) {
	f.calls++
	return f.code, f.err
}

type fakeSMS struct {
	configured bool
	err        error
	sentTo     string
	sentCode   string
}

func (f *fakeSMS) Configured() bool { return f.configured }
func (f *fakeSMS) SendVerificationCode(ctx context.Context, to, code string) error {
	f.sentTo, f.sentCode = to, code
	return f.err
}

type fakeEmail struct {
	configured bool
	err        error
	sentTo     string
	sentCode   string
}

func (f *fakeEmail) Configured() bool { return f.configured }
func (f *fakeEmail) SendVerificationCode(to, code string) error {
	f.sentTo, f.sentCode = to, code
	return f.err
}

func phoneAccount() *model.Account {
	phone := "+15552223333"
	return &model.Account{ID: 7, Email: "a@example.com", Phone: &phone}
}

func testService(r *fakeRotator, s *fakeSMS, e *fakeEmail) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(r, s, e, logger)
}

func TestDispatchPrefersSMS(t *testing.T) {
	rot := &fakeRotator{code: "7K2Q"}
	sms := &fakeSMS{configured: true}
	mail := &fakeEmail{configured: true}

	err := testService(rot, sms, mail).Dispatch(context.Background(), phoneAccount())
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if rot.calls != 1 {
		t.Errorf("rotations = %d, want 1", rot.calls)
	}
	if sms.sentTo != "+15552223333" || sms.sentCode != "7K2Q" {
		t.Errorf("sms sent %s/%s, want +15552223333/7K2Q", sms.sentTo, sms.sentCode)
	}
	if mail.sentTo != "" {
		t.Error("email should not be used when SMS succeeds")
	}
}

func TestDispatchFallsBackToEmail(t *testing.T) {
	rot := &fakeRotator{code: "7K2Q"}
	sms := &fakeSMS{configured: true, err: errors.New("carrier down")}
	mail := &fakeEmail{configured: true}

	err := testService(rot, sms, mail).Dispatch(context.Background(), phoneAccount())
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if mail.sentTo != "a@example.com" || mail.sentCode != "7K2Q" {
		t.Errorf("email sent %s/%s, want a@example.com/7K2Q", mail.sentTo, mail.sentCode)
	}
}

func TestDispatchEmailWhenSMSUnconfigured(t *testing.T) {
	rot := &fakeRotator{code: "7K2Q"}
	sms := &fakeSMS{configured: false}
	mail := &fakeEmail{configured: true}

	err := testService(rot, sms, mail).Dispatch(context.Background(), phoneAccount())
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if sms.sentTo != "" {
		t.Error("unconfigured SMS channel must not be called")
	}
	if mail.sentCode != "7K2Q" {
		t.Errorf("email code = %q, want 7K2Q", mail.sentCode)
	}
}

func TestDispatchErrorWhenAllChannelsFail(t *testing.T) {
	rot := &fakeRotator{code: "7K2Q"}
	sms := &fakeSMS{configured: true, err: errors.New("carrier down")}
	mail := &fakeEmail{configured: true, err: errors.New("mailbox full")}

	err := testService(rot, sms, mail).Dispatch(context.Background(), phoneAccount())
	if err == nil {
		t.Fatal("expected error when both channels fail")
	}
}

func TestDispatchRotationFailure(t *testing.T) {
	rot := &fakeRotator{err: errors.New("db closed")}
	sms := &fakeSMS{configured: true}
	mail := &fakeEmail{configured: true}

	err := testService(rot, sms, mail).Dispatch(context.Background(), phoneAccount())
	if err == nil {
		t.Fatal("expected error when rotation fails")
	}
	if sms.sentTo != "" || mail.sentTo != "" {
		t.Error("no delivery should happen when rotation fails")
	}
}
