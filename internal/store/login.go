package store

import (
	"database/sql"
	"fmt"

	"github.com/rcalloway/taxdesk/internal/model"
)

type LoginStore struct {
	db *sql.DB
}

func NewLoginStore(db *sql.DB) *LoginStore {
	return &LoginStore{db: db}
}

// Record appends a login history row. Best effort from callers; history is
// informational.
func (s *LoginStore) Record(accountID int64, ip string) error {
	_, err := s.db.Exec(
		`INSERT INTO login_records (account_id, ip) VALUES (?, ?)`,
		accountID, ip,
	)
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	return nil
}

// ListRecent returns the most recent logins for an account, newest first.
func (s *LoginStore) ListRecent(accountID int64, limit int) ([]*model.LoginRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, account_id, ip, created_at FROM login_records WHERE account_id = ? ORDER BY created_at DESC LIMIT ?`,
		accountID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list logins: %w", err)
	}
	defer rows.Close()

	var records []*model.LoginRecord
	for rows.Next() {
		var r model.LoginRecord
		if err := rows.Scan(&r.ID, &r.AccountID, &r.IP, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan login: %w", err)
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}
