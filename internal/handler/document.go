package handler

import (
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/rcalloway/taxdesk/internal/auth"
	"github.com/rcalloway/taxdesk/internal/docstore"
	"github.com/rcalloway/taxdesk/internal/model"
	"github.com/rcalloway/taxdesk/internal/store"
)

// maxUploadBytes caps a single document upload at 25 MiB.
const maxUploadBytes = 25 << 20

type DocumentHandler struct {
	accounts  *store.AccountStore
	documents *store.DocumentStore
	objects   *docstore.Service
	templates *template.Template
	logger    *slog.Logger
}

func NewDocumentHandler(
	as *store.AccountStore,
	ds *store.DocumentStore,
	os *docstore.Service,
	logger *slog.Logger,
) *DocumentHandler {
	tmpl := template.Must(template.ParseGlob("web/templates/document_*.html"))
	return &DocumentHandler{
		accounts:  as,
		documents: ds,
		objects:   os,
		templates: tmpl,
		logger:    logger,
	}
}

// ListPage shows a client's documents. Clients see their own; preparers pass
// the client ID in the path.
func (h *DocumentHandler) ListPage(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())
	owner, ok := h.owner(w, r, account)
	if !ok {
		return
	}

	docs, err := h.documents.ListByAccount(owner.ID)
	if err != nil {
		h.logger.Error("list documents", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	render(w, h.templates, h.logger, "document_list.html", map[string]any{
		"Owner":     owner,
		"Documents": docs,
		"CanUpload": h.objects.Configured(),
	})
}

// Upload stores the file body in the bucket and its metadata in the
// documents table.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())
	owner, ok := h.owner(w, r, account)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("document")
	if err != nil {
		http.Error(w, "a file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	taxYear, err := strconv.Atoi(r.FormValue("tax_year"))
	if err != nil || taxYear < 2000 || taxYear > 2100 {
		http.Error(w, "invalid tax year", http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(header.Filename)
	if name == "" {
		http.Error(w, "file name is required", http.StatusBadRequest)
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key, err := h.objects.Put(r.Context(), file, contentType)
	if err != nil {
		h.logger.Error("store document", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	if _, err := h.documents.Create(owner.ID, account.ID, name, key, contentType, header.Size, taxYear); err != nil {
		h.logger.Error("record document", "error", err)
		// Orphaned object: remove it rather than leak it.
		if derr := h.objects.Delete(r.Context(), key); derr != nil {
			h.logger.Error("remove orphaned object", "key", key, "error", derr)
		}
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/documents/%d", owner.ID), http.StatusSeeOther)
}

// Download streams the document to whoever is allowed to see it.
func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())
	doc, ok := h.document(w, r, account)
	if !ok {
		return
	}

	body, err := h.objects.Get(r.Context(), doc.ObjectKey)
	if err != nil {
		h.logger.Error("fetch document", "key", doc.ObjectKey, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Name))
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("stream document", "key", doc.ObjectKey, "error", err)
	}
}

// Delete removes the document record and its stored object.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())
	doc, ok := h.document(w, r, account)
	if !ok {
		return
	}

	if err := h.documents.Delete(doc.ID); err != nil {
		h.logger.Error("delete document", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if err := h.objects.Delete(r.Context(), doc.ObjectKey); err != nil {
		h.logger.Error("delete object", "key", doc.ObjectKey, "error", err)
	}

	http.Redirect(w, r, fmt.Sprintf("/documents/%d", doc.AccountID), http.StatusSeeOther)
}

// owner resolves whose documents are being touched: the client themselves,
// or any preparer in the same firm.
func (h *DocumentHandler) owner(w http.ResponseWriter, r *http.Request, account *model.Account) (*model.Account, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return nil, false
	}
	if id == account.ID {
		return account, true
	}
	if !account.IsOperator {
		http.Error(w, "not found", http.StatusNotFound)
		return nil, false
	}

	owner, err := h.accounts.GetByID(id)
	if err != nil {
		h.logger.Error("get owner", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return nil, false
	}
	if owner == nil || account.FirmID == nil || owner.FirmID == nil || *owner.FirmID != *account.FirmID {
		http.Error(w, "not found", http.StatusNotFound)
		return nil, false
	}
	return owner, true
}

func (h *DocumentHandler) document(w http.ResponseWriter, r *http.Request, account *model.Account) (*model.Document, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return nil, false
	}

	doc, err := h.documents.GetByID(id)
	if err != nil {
		h.logger.Error("get document", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return nil, false
	}
	if doc == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return nil, false
	}

	// The client who owns it, or a preparer in the owning client's firm.
	if doc.AccountID == account.ID {
		return doc, true
	}
	if account.IsOperator {
		owner, err := h.accounts.GetByID(doc.AccountID)
		if err == nil && owner != nil && account.FirmID != nil && owner.FirmID != nil && *owner.FirmID == *account.FirmID {
			return doc, true
		}
	}
	http.Error(w, "not found", http.StatusNotFound)
	return nil, false
}
