package model

import "time"

// Document is client paperwork (W-2s, 1099s, receipts) held in object
// storage. The row is metadata; bytes live under ObjectKey in S3.
type Document struct {
	ID          int64     `json:"id"`
	AccountID   int64     `json:"account_id"`
	UploadedBy  int64     `json:"uploaded_by"`
	Name        string    `json:"name"`
	ObjectKey   string    `json:"object_key"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	TaxYear     int       `json:"tax_year"`
	CreatedAt   time.Time `json:"created_at"`
}
