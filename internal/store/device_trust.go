package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rcalloway/taxdesk/internal/model"
)

// trustWindow is the inactivity window after which a device must re-verify.
const trustWindow = 30 * 24 * time.Hour

type DeviceTrustStore struct {
	db *sql.DB
}

func NewDeviceTrustStore(db *sql.DB) *DeviceTrustStore {
	return &DeviceTrustStore{db: db}
}

func scanDeviceTrust(scanner interface{ Scan(...any) error }) (*model.DeviceTrust, error) {
	var d model.DeviceTrust
	err := scanner.Scan(&d.ID, &d.Token, &d.AccountID, &d.ExpiresAt, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

const deviceTrustCols = `id, token, account_id, expires_at, created_at`

// Create records trust for the current device after a successful code
// verification and returns the row carrying the cookie token.
func (s *DeviceTrustStore) Create(accountID int64) (*model.DeviceTrust, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, fmt.Errorf("generate trust token: %w", err)
	}
	token := hex.EncodeToString(tokenBytes)
	expiresAt := time.Now().UTC().Add(trustWindow)

	result, err := s.db.Exec(
		`INSERT INTO device_trust (token, account_id, expires_at) VALUES (?, ?, ?)`,
		token, accountID, expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert device trust: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+deviceTrustCols+` FROM device_trust WHERE id = ?`, id)
	return scanDeviceTrust(row)
}

// GetValid returns the unexpired trust row binding this token to this
// account, or nil. Expired rows are indistinguishable from absent ones.
func (s *DeviceTrustStore) GetValid(token string, accountID int64) (*model.DeviceTrust, error) {
	row := s.db.QueryRow(
		`SELECT `+deviceTrustCols+` FROM device_trust WHERE token = ? AND account_id = ? AND expires_at > datetime('now')`,
		token, accountID,
	)
	d, err := scanDeviceTrust(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get device trust: %w", err)
	}
	return d, nil
}

// Touch slides the inactivity window forward. Called on each authenticated
// request from a trusted device.
func (s *DeviceTrustStore) Touch(id int64) error {
	expiresAt := time.Now().UTC().Add(trustWindow)
	_, err := s.db.Exec(
		`UPDATE device_trust SET expires_at = ? WHERE id = ?`,
		expiresAt, id,
	)
	if err != nil {
		return fmt.Errorf("touch device trust: %w", err)
	}
	return nil
}

// Revoke drops a single trust row, scoped to the owning account so one user
// cannot revoke another's device.
func (s *DeviceTrustStore) Revoke(accountID, id int64) error {
	_, err := s.db.Exec(
		`DELETE FROM device_trust WHERE account_id = ? AND id = ?`,
		accountID, id,
	)
	if err != nil {
		return fmt.Errorf("revoke device: %w", err)
	}
	return nil
}

// RevokeOthers drops every trust row for the account except the one the
// request arrived on. Other devices re-verify on their next request.
func (s *DeviceTrustStore) RevokeOthers(accountID, keepID int64) (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM device_trust WHERE account_id = ? AND id != ?`,
		accountID, keepID,
	)
	if err != nil {
		return 0, fmt.Errorf("revoke other devices: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}

func (s *DeviceTrustStore) ListByAccount(accountID int64) ([]*model.DeviceTrust, error) {
	rows, err := s.db.Query(
		`SELECT `+deviceTrustCols+` FROM device_trust WHERE account_id = ? AND expires_at > datetime('now') ORDER BY created_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("list device trust: %w", err)
	}
	defer rows.Close()

	var trusts []*model.DeviceTrust
	for rows.Next() {
		d, err := scanDeviceTrust(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device trust: %w", err)
		}
		trusts = append(trusts, d)
	}
	return trusts, rows.Err()
}

func (s *DeviceTrustStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM device_trust WHERE expires_at <= datetime('now')`)
	if err != nil {
		return 0, fmt.Errorf("delete expired device trust: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
