package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rcalloway/taxdesk/internal/model"
)

const inviteTTL = 7 * 24 * time.Hour

type InviteStore struct {
	db *sql.DB
}

func NewInviteStore(db *sql.DB) *InviteStore {
	return &InviteStore{db: db}
}

func scanInvite(scanner interface{ Scan(...any) error }) (*model.Invite, error) {
	var i model.Invite
	var usedAt sql.NullTime
	err := scanner.Scan(
		&i.ID, &i.Token, &i.Email, &i.FirmID, &i.Role, &i.IsAdmin,
		&i.ExpiresAt, &usedAt, &i.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if usedAt.Valid {
		i.UsedAt = &usedAt.Time
	}
	return &i, nil
}

const inviteCols = `id, token, email, firm_id, role, is_admin, expires_at, used_at, created_at`

// Create issues an invitation code for the email, invalidating any earlier
// pending invitation from the same firm to the same address.
func (s *InviteStore) Create(email string, firmID int64, role string, isAdmin bool) (*model.Invite, error) {
	_, err := s.db.Exec(
		`UPDATE invites SET used_at = datetime('now') WHERE email = ? AND firm_id = ? AND used_at IS NULL`,
		email, firmID,
	)
	if err != nil {
		return nil, fmt.Errorf("invalidate previous invites: %w", err)
	}

	tokenBytes := make([]byte, 16)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, fmt.Errorf("generate invite token: %w", err)
	}
	token := hex.EncodeToString(tokenBytes)
	expiresAt := time.Now().UTC().Add(inviteTTL)

	result, err := s.db.Exec(
		`INSERT INTO invites (token, email, firm_id, role, is_admin, expires_at) VALUES (?, ?, ?, ?, ?, ?)`,
		token, email, firmID, role, isAdmin, expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert invite: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+inviteCols+` FROM invites WHERE id = ?`, id)
	return scanInvite(row)
}

// GetValidByToken returns the unexpired, unused invite for the token, or nil.
func (s *InviteStore) GetValidByToken(token string) (*model.Invite, error) {
	row := s.db.QueryRow(
		`SELECT `+inviteCols+` FROM invites WHERE token = ? AND expires_at > datetime('now') AND used_at IS NULL`,
		token,
	)
	i, err := scanInvite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invite by token: %w", err)
	}
	return i, nil
}

func (s *InviteStore) MarkUsed(id int64) error {
	_, err := s.db.Exec(`UPDATE invites SET used_at = datetime('now') WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark invite used: %w", err)
	}
	return nil
}

func (s *InviteStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM invites WHERE expires_at <= datetime('now')`)
	if err != nil {
		return 0, fmt.Errorf("delete expired invites: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
