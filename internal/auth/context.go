package auth

import (
	"context"

	"github.com/rcalloway/taxdesk/internal/model"
)

type contextKey struct{}

// Context carries the resolved session state for one request. Account is nil
// when no valid session cookie was presented.
type Context struct {
	Account       *model.Account
	SessionID     int64
	DeviceTrusted bool
	DeviceTrustID int64
}

func WithContext(ctx context.Context, ac Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (Context, bool) {
	ac, ok := ctx.Value(contextKey{}).(Context)
	return ac, ok
}

// AccountFromContext returns the authenticated account, or nil.
func AccountFromContext(ctx context.Context) *model.Account {
	ac, ok := FromContext(ctx)
	if !ok {
		return nil
	}
	return ac.Account
}

func IsOperator(ctx context.Context) bool {
	a := AccountFromContext(ctx)
	return a != nil && a.IsOperator
}

func IsFirmAdmin(ctx context.Context) bool {
	a := AccountFromContext(ctx)
	return a != nil && a.IsOperator && a.IsAdmin
}
