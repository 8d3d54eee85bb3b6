package auth

import (
	"context"
	"testing"

	"github.com/rcalloway/taxdesk/internal/model"
)

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected ok = false for empty context")
	}
	if a := AccountFromContext(context.Background()); a != nil {
		t.Error("expected nil account for empty context")
	}
}

func TestWithContextRoundTrip(t *testing.T) {
	acct := &model.Account{ID: 7, Email: "cpa@example.com", IsOperator: true}
	ctx := WithContext(context.Background(), Context{
		Account:       acct,
		SessionID:     3,
		DeviceTrusted: true,
	})

	ac, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected ok = true")
	}
	if ac.Account.ID != 7 {
		t.Errorf("account id = %d, want 7", ac.Account.ID)
	}
	if ac.SessionID != 3 {
		t.Errorf("session id = %d, want 3", ac.SessionID)
	}
	if !ac.DeviceTrusted {
		t.Error("expected device trusted")
	}
}

func TestIsFirmAdmin(t *testing.T) {
	tests := []struct {
		name     string
		account  *model.Account
		want     bool
	}{
		{"nil account", nil, false},
		{"client", &model.Account{}, false},
		{"operator without admin", &model.Account{IsOperator: true}, false},
		{"admin without operator flag", &model.Account{IsAdmin: true}, false},
		{"operator admin", &model.Account{IsOperator: true, IsAdmin: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.account != nil {
				ctx = WithContext(ctx, Context{Account: tt.account})
			}
			if got := IsFirmAdmin(ctx); got != tt.want {
				t.Errorf("IsFirmAdmin = %v, want %v", got, tt.want)
			}
		})
	}
}
