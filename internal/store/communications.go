package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rcalloway/taxdesk/internal/model"
)

type CommunicationsStore struct {
	db *sql.DB
}

func NewCommunicationsStore(db *sql.DB) *CommunicationsStore {
	return &CommunicationsStore{db: db}
}

func scanCommunications(scanner interface{ Scan(...any) error }) (*model.Communications, error) {
	var c model.Communications
	var agreed sql.NullTime
	err := scanner.Scan(&c.ID, &c.AccountID, &c.RegistrationReminders, &c.TrialReminders, &agreed)
	if err != nil {
		return nil, err
	}
	if agreed.Valid {
		c.AgreedTerms = &agreed.Time
	}
	return &c, nil
}

const communicationsCols = `id, account_id, registration_reminders, trial_reminders, agreed_terms`

// GetOrCreate returns the account's counters, inserting a zeroed row on
// first use.
func (s *CommunicationsStore) GetOrCreate(accountID int64) (*model.Communications, error) {
	_, err := s.db.Exec(
		`INSERT INTO communications (account_id) VALUES (?) ON CONFLICT(account_id) DO NOTHING`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure communications row: %w", err)
	}
	row := s.db.QueryRow(
		`SELECT `+communicationsCols+` FROM communications WHERE account_id = ?`,
		accountID,
	)
	c, err := scanCommunications(row)
	if err != nil {
		return nil, fmt.Errorf("get communications: %w", err)
	}
	return c, nil
}

func (s *CommunicationsStore) SetAgreedTerms(accountID int64, at time.Time) error {
	if _, err := s.GetOrCreate(accountID); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`UPDATE communications SET agreed_terms = ? WHERE account_id = ?`,
		at, accountID,
	)
	if err != nil {
		return fmt.Errorf("set agreed terms: %w", err)
	}
	return nil
}

// IncrementRegistrationReminders bumps the counter and returns the new
// value. The counter is what keeps reminder dispatch at-most-N per account.
func (s *CommunicationsStore) IncrementRegistrationReminders(accountID int64) (int, error) {
	if _, err := s.GetOrCreate(accountID); err != nil {
		return 0, err
	}
	_, err := s.db.Exec(
		`UPDATE communications SET registration_reminders = registration_reminders + 1 WHERE account_id = ?`,
		accountID,
	)
	if err != nil {
		return 0, fmt.Errorf("increment registration reminders: %w", err)
	}
	var n int
	err = s.db.QueryRow(
		`SELECT registration_reminders FROM communications WHERE account_id = ?`,
		accountID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("read registration reminders: %w", err)
	}
	return n, nil
}

// ListNeedingRegistrationReminder returns accounts whose email was never
// confirmed and that have received fewer than max reminders. Accounts with
// no communications row yet count as zero.
func (s *CommunicationsStore) ListNeedingRegistrationReminder(max int) ([]*model.Account, error) {
	rows, err := s.db.Query(
		`SELECT `+accountCols+` FROM accounts a
		 WHERE a.is_email_verified = 0
		   AND COALESCE((SELECT c.registration_reminders FROM communications c WHERE c.account_id = a.id), 0) < ?`,
		max,
	)
	if err != nil {
		return nil, fmt.Errorf("list reminder candidates: %w", err)
	}
	defer rows.Close()

	var accounts []*model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
