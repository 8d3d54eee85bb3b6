package store

import (
	"database/sql"
	"fmt"

	"github.com/rcalloway/taxdesk/internal/model"
)

type DocumentStore struct {
	db *sql.DB
}

func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func scanDocument(scanner interface{ Scan(...any) error }) (*model.Document, error) {
	var d model.Document
	err := scanner.Scan(
		&d.ID, &d.AccountID, &d.UploadedBy, &d.Name, &d.ObjectKey,
		&d.ContentType, &d.Size, &d.TaxYear, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

const documentCols = `id, account_id, uploaded_by, name, object_key, content_type, size, tax_year, created_at`

func (s *DocumentStore) Create(accountID, uploadedBy int64, name, objectKey, contentType string, size int64, taxYear int) (*model.Document, error) {
	result, err := s.db.Exec(
		`INSERT INTO documents (account_id, uploaded_by, name, object_key, content_type, size, tax_year) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		accountID, uploadedBy, name, objectKey, contentType, size, taxYear,
	)
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *DocumentStore) GetByID(id int64) (*model.Document, error) {
	row := s.db.QueryRow(`SELECT `+documentCols+` FROM documents WHERE id = ?`, id)
	d, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

func (s *DocumentStore) ListByAccount(accountID int64) ([]*model.Document, error) {
	rows, err := s.db.Query(
		`SELECT `+documentCols+` FROM documents WHERE account_id = ? ORDER BY tax_year DESC, created_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *DocumentStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}
