// Package reminder nags accounts that registered but never confirmed their
// email address. Each account gets at most a fixed number of reminders; the
// per-account counter in the communications table is the cap.
package reminder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rcalloway/taxdesk/internal/model"
)

const maxRegistrationReminders = 3

// CandidateLister finds accounts still owed a reminder.
type CandidateLister interface {
	ListNeedingRegistrationReminder(max int) ([]*model.Account, error)
	IncrementRegistrationReminders(accountID int64) (int, error)
}

// CodeIssuer mints a fresh email confirmation code for the reminder link.
type CodeIssuer interface {
	RotateEmailVerificationCode(id int64) (string, error)
}

// Sender delivers the reminder email.
type Sender interface {
	Configured() bool
	SendRegistrationReminder(toEmail, code string) error
}

// Scheduler periodically sweeps for unconfirmed accounts and sends reminders.
type Scheduler struct {
	mu       sync.RWMutex
	comms    CandidateLister
	accounts CodeIssuer
	sender   Sender
	logger   *slog.Logger
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewScheduler(comms CandidateLister, accounts CodeIssuer, sender Sender, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		comms:    comms,
		accounts: accounts,
		sender:   sender,
		logger:   logger,
		interval: 24 * time.Hour,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Sweep runs one reminder pass. The counter is bumped before the send, so a
// delivery failure consumes the attempt rather than retrying forever against
// a dead mailbox.
func (s *Scheduler) Sweep() {
	if !s.sender.Configured() {
		return
	}

	candidates, err := s.comms.ListNeedingRegistrationReminder(maxRegistrationReminders)
	if err != nil {
		s.logger.Error("reminder sweep", "error", err)
		return
	}

	for _, account := range candidates {
		code, err := s.accounts.RotateEmailVerificationCode(account.ID)
		if err != nil {
			s.logger.Error("rotate confirmation code", "account_id", account.ID, "error", err)
			continue
		}

		if _, err := s.comms.IncrementRegistrationReminders(account.ID); err != nil {
			s.logger.Error("bump reminder counter", "account_id", account.ID, "error", err)
			continue
		}

		if err := s.sender.SendRegistrationReminder(account.Email, code); err != nil {
			s.logger.Warn("send registration reminder", "account_id", account.ID, "error", err)
		}
	}
}
