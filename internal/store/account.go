package store

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"

	"github.com/rcalloway/taxdesk/internal/model"
)

type AccountStore struct {
	db *sql.DB
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

func scanAccount(scanner interface{ Scan(...any) error }) (*model.Account, error) {
	var a model.Account
	var phone, verCode, emailCode, prevEmail sql.NullString
	var firmID sql.NullInt64

	err := scanner.Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.FirstName, &a.LastName,
		&phone, &firmID, &a.IsOperator, &a.IsAdmin, &a.Is2FA,
		&a.IsVerified, &verCode, &a.IsEmailVerified, &emailCode,
		&prevEmail, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if phone.Valid {
		a.Phone = &phone.String
	}
	if firmID.Valid {
		a.FirmID = &firmID.Int64
	}
	if verCode.Valid {
		a.VerificationCode = &verCode.String
	}
	if emailCode.Valid {
		a.EmailVerificationCode = &emailCode.String
	}
	if prevEmail.Valid {
		a.PreviousEmail = &prevEmail.String
	}
	return &a, nil
}

const accountCols = `id, email, password_hash, first_name, last_name, phone, firm_id,
	is_operator, is_admin, is_2fa, is_verified, verification_code,
	is_email_verified, email_verification_code, previous_email, created_at, updated_at`

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateCode returns n characters drawn from the uppercase alphanumeric
// alphabet. Short SMS codes use n=4, email confirmation codes n=16.
func generateCode(n int) (string, error) {
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		buf[i] = codeAlphabet[idx.Int64()]
	}
	return string(buf), nil
}

func (s *AccountStore) Create(email, passwordHash string, isOperator bool) (*model.Account, error) {
	result, err := s.db.Exec(
		`INSERT INTO accounts (email, password_hash, is_operator) VALUES (?, ?, ?)`,
		email, passwordHash, isOperator,
	)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *AccountStore) GetByID(id int64) (*model.Account, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (s *AccountStore) GetByEmail(email string) (*model.Account, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM accounts WHERE email = ?`, email)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account by email: %w", err)
	}
	return a, nil
}

// GetByEmailVerificationCode finds the account holding an outstanding email
// confirmation code, or nil.
func (s *AccountStore) GetByEmailVerificationCode(code string) (*model.Account, error) {
	row := s.db.QueryRow(
		`SELECT `+accountCols+` FROM accounts WHERE email_verification_code = ?`,
		code,
	)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account by email code: %w", err)
	}
	return a, nil
}

// ListByFirm returns one side of the firm: preparers when operators is true,
// clients when false.
func (s *AccountStore) ListByFirm(firmID int64, operators bool) ([]*model.Account, error) {
	query := `SELECT ` + accountCols + ` FROM accounts WHERE firm_id = ? AND is_operator = ? ORDER BY created_at DESC`

	rows, err := s.db.Query(query, firmID, operators)
	if err != nil {
		return nil, fmt.Errorf("list accounts by firm: %w", err)
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

func (s *AccountStore) CountOperators(firmID int64) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM accounts WHERE firm_id = ? AND is_operator = 1`,
		firmID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count operators: %w", err)
	}
	return n, nil
}

// RotateVerificationCode stores a fresh 4-character phone code, invalidating
// any previous one, and clears the verified flag. Returns the new code.
func (s *AccountStore) RotateVerificationCode(id int64) (string, error) {
	code, err := generateCode(4)
	if err != nil {
		return "", err
	}
	_, err = s.db.Exec(
		`UPDATE accounts SET verification_code = ?, is_verified = 0, updated_at = datetime('now') WHERE id = ?`,
		code, id,
	)
	if err != nil {
		return "", fmt.Errorf("rotate verification code: %w", err)
	}
	return code, nil
}

// MarkVerified sets the phone-verified flag and clears the outstanding code.
func (s *AccountStore) MarkVerified(id int64) error {
	_, err := s.db.Exec(
		`UPDATE accounts SET is_verified = 1, verification_code = NULL, updated_at = datetime('now') WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	return nil
}

// RotateEmailVerificationCode stores a fresh 16-character email confirmation
// code and clears the email-verified flag. Returns the new code.
func (s *AccountStore) RotateEmailVerificationCode(id int64) (string, error) {
	code, err := generateCode(16)
	if err != nil {
		return "", err
	}
	_, err = s.db.Exec(
		`UPDATE accounts SET email_verification_code = ?, is_email_verified = 0, updated_at = datetime('now') WHERE id = ?`,
		code, id,
	)
	if err != nil {
		return "", fmt.Errorf("rotate email verification code: %w", err)
	}
	return code, nil
}

func (s *AccountStore) MarkEmailVerified(id int64) error {
	_, err := s.db.Exec(
		`UPDATE accounts SET is_email_verified = 1, email_verification_code = NULL, updated_at = datetime('now') WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	return nil
}

func (s *AccountStore) SetPhone(id int64, phone string) error {
	_, err := s.db.Exec(
		`UPDATE accounts SET phone = ?, updated_at = datetime('now') WHERE id = ?`,
		phone, id,
	)
	if err != nil {
		return fmt.Errorf("set phone: %w", err)
	}
	return nil
}

func (s *AccountStore) Set2FA(id int64, enabled bool) error {
	_, err := s.db.Exec(
		`UPDATE accounts SET is_2fa = ?, updated_at = datetime('now') WHERE id = ?`,
		enabled, id,
	)
	if err != nil {
		return fmt.Errorf("set 2fa: %w", err)
	}
	return nil
}

func (s *AccountStore) SetFirm(id, firmID int64) error {
	_, err := s.db.Exec(
		`UPDATE accounts SET firm_id = ?, updated_at = datetime('now') WHERE id = ?`,
		firmID, id,
	)
	if err != nil {
		return fmt.Errorf("set firm: %w", err)
	}
	return nil
}

func (s *AccountStore) SetAdmin(id int64, admin bool) error {
	_, err := s.db.Exec(
		`UPDATE accounts SET is_admin = ?, updated_at = datetime('now') WHERE id = ?`,
		admin, id,
	)
	if err != nil {
		return fmt.Errorf("set admin: %w", err)
	}
	return nil
}

func (s *AccountStore) UpdateName(id int64, first, last string) error {
	_, err := s.db.Exec(
		`UPDATE accounts SET first_name = ?, last_name = ?, updated_at = datetime('now') WHERE id = ?`,
		first, last, id,
	)
	if err != nil {
		return fmt.Errorf("update name: %w", err)
	}
	return nil
}

// UpdateEmail changes the address, remembers the previous one, and demotes
// the account to email-unverified until the new address is confirmed.
func (s *AccountStore) UpdateEmail(id int64, newEmail string) error {
	_, err := s.db.Exec(
		`UPDATE accounts SET previous_email = email, email = ?, is_email_verified = 0, updated_at = datetime('now') WHERE id = ?`,
		newEmail, id,
	)
	if err != nil {
		return fmt.Errorf("update email: %w", err)
	}
	return nil
}

func (s *AccountStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}
