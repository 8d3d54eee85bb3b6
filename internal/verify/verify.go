// Package verify rotates and delivers the short device-verification codes.
// Rotation and delivery are one operation: issuing a fresh code always
// invalidates the previous one, so a code in flight can never race a newer
// challenge.
package verify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rcalloway/taxdesk/internal/model"
)

// CodeRotator is the account-store surface the service needs.
type CodeRotator interface {
	RotateVerificationCode(id int64) (string, error)
}

// SMSSender delivers a code by text message.
type SMSSender interface {
	Configured() bool
	SendVerificationCode(ctx context.Context, toNumber, code string) error
}

// EmailSender delivers a code by email when SMS is unavailable.
type EmailSender interface {
	Configured() bool
	SendVerificationCode(toEmail, code string) error
}

type Service struct {
	accounts CodeRotator
	sms      SMSSender
	email    EmailSender
	logger   *slog.Logger
}

func NewService(accounts CodeRotator, sms SMSSender, email EmailSender, logger *slog.Logger) *Service {
	return &Service{accounts: accounts, sms: sms, email: email, logger: logger}
}

// Dispatch issues a fresh code for the account and delivers it, SMS first
// with email as the fallback channel. It returns an error only when no
// channel accepted the code; the rotation itself is never rolled back, since
// the account is already demoted to unverified by the time delivery runs.
func (s *Service) Dispatch(ctx context.Context, account *model.Account) error {
	code, err := s.accounts.RotateVerificationCode(account.ID)
	if err != nil {
		return fmt.Errorf("rotate verification code: %w", err)
	}

	if s.sms.Configured() && account.Phone != nil && *account.Phone != "" {
		if err := s.sms.SendVerificationCode(ctx, *account.Phone, code); err == nil {
			return nil
		} else {
			s.logger.Warn("sms code delivery failed, falling back to email",
				"account_id", account.ID, "error", err)
		}
	}

	if s.email.Configured() {
		if err := s.email.SendVerificationCode(account.Email, code); err != nil {
			return fmt.Errorf("deliver verification code: %w", err)
		}
		return nil
	}

	return fmt.Errorf("no delivery channel configured for account %d", account.ID)
}
