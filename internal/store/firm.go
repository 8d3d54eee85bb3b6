package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rcalloway/taxdesk/internal/model"
)

type FirmStore struct {
	db *sql.DB
}

func NewFirmStore(db *sql.DB) *FirmStore {
	return &FirmStore{db: db}
}

func scanFirm(scanner interface{ Scan(...any) error }) (*model.Firm, error) {
	var f model.Firm
	var bossID sql.NullInt64
	var custID, subID sql.NullString
	var trialEnd sql.NullTime

	err := scanner.Scan(
		&f.ID, &f.Name, &bossID, &custID, &subID, &f.IsPaid, &trialEnd,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if bossID.Valid {
		f.BossID = &bossID.Int64
	}
	if custID.Valid {
		f.StripeCustomerID = &custID.String
	}
	if subID.Valid {
		f.StripeSubscriptionID = &subID.String
	}
	if trialEnd.Valid {
		f.TrialEnd = &trialEnd.Time
	}
	return &f, nil
}

const firmCols = `id, name, boss_id, stripe_customer_id, stripe_subscription_id, is_paid, trial_end, created_at, updated_at`

func (s *FirmStore) Create(name string) (*model.Firm, error) {
	result, err := s.db.Exec(`INSERT INTO firms (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("insert firm: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *FirmStore) GetByID(id int64) (*model.Firm, error) {
	row := s.db.QueryRow(`SELECT `+firmCols+` FROM firms WHERE id = ?`, id)
	f, err := scanFirm(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get firm: %w", err)
	}
	return f, nil
}

func (s *FirmStore) GetByStripeCustomerID(customerID string) (*model.Firm, error) {
	row := s.db.QueryRow(`SELECT `+firmCols+` FROM firms WHERE stripe_customer_id = ?`, customerID)
	f, err := scanFirm(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get firm by customer id: %w", err)
	}
	return f, nil
}

func (s *FirmStore) Rename(id int64, name string) error {
	_, err := s.db.Exec(
		`UPDATE firms SET name = ?, updated_at = datetime('now') WHERE id = ?`,
		name, id,
	)
	if err != nil {
		return fmt.Errorf("rename firm: %w", err)
	}
	return nil
}

// SetBilling records the outcome of a completed checkout: the owning
// account, the Stripe identifiers, and the trial window.
func (s *FirmStore) SetBilling(id, bossID int64, customerID, subscriptionID string, isPaid bool, trialEnd time.Time) error {
	_, err := s.db.Exec(
		`UPDATE firms SET boss_id = ?, stripe_customer_id = ?, stripe_subscription_id = ?, is_paid = ?, trial_end = ?, updated_at = datetime('now') WHERE id = ?`,
		bossID, customerID, subscriptionID, isPaid, trialEnd, id,
	)
	if err != nil {
		return fmt.Errorf("set firm billing: %w", err)
	}
	return nil
}

// SetPaid flips the paid flag, keyed by Stripe customer since webhook events
// identify firms that way.
func (s *FirmStore) SetPaid(customerID string, paid bool) error {
	_, err := s.db.Exec(
		`UPDATE firms SET is_paid = ?, updated_at = datetime('now') WHERE stripe_customer_id = ?`,
		paid, customerID,
	)
	if err != nil {
		return fmt.Errorf("set firm paid: %w", err)
	}
	return nil
}

func (s *FirmStore) SetTrialEnd(customerID string, trialEnd time.Time) error {
	_, err := s.db.Exec(
		`UPDATE firms SET trial_end = ?, updated_at = datetime('now') WHERE stripe_customer_id = ?`,
		trialEnd, customerID,
	)
	if err != nil {
		return fmt.Errorf("set firm trial end: %w", err)
	}
	return nil
}

func (s *FirmStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM firms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete firm: %w", err)
	}
	return nil
}
