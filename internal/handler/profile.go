package handler

import (
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rcalloway/taxdesk/internal/auth"
	"github.com/rcalloway/taxdesk/internal/email"
	"github.com/rcalloway/taxdesk/internal/store"
)

type ProfileHandler struct {
	accounts  *store.AccountStore
	email     *email.Client
	templates *template.Template
	logger    *slog.Logger
}

func NewProfileHandler(as *store.AccountStore, ec *email.Client, logger *slog.Logger) *ProfileHandler {
	tmpl := template.Must(template.ParseGlob("web/templates/profile_*.html"))
	return &ProfileHandler{
		accounts:  as,
		email:     ec,
		templates: tmpl,
		logger:    logger,
	}
}

func (h *ProfileHandler) Page(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())
	render(w, h.templates, h.logger, "profile_page.html", map[string]any{
		"Account": account,
	})
}

func (h *ProfileHandler) UpdateName(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())
	first := strings.TrimSpace(r.FormValue("first_name"))
	last := strings.TrimSpace(r.FormValue("last_name"))
	if first == "" || last == "" {
		render(w, h.templates, h.logger, "profile_page.html", map[string]any{
			"Account": account,
			"Error":   "First and last name are required",
		})
		return
	}

	if err := h.accounts.UpdateName(account.ID, first, last); err != nil {
		h.logger.Error("update name", "account_id", account.ID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}

// UpdateEmail switches the address and demotes the account to
// email-unverified. The next request can't pass the gate until the new
// address confirms, so the redirect goes straight to the email step.
func (h *ProfileHandler) UpdateEmail(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())
	newEmail := strings.ToLower(strings.TrimSpace(r.FormValue("email")))
	if newEmail == "" || !strings.Contains(newEmail, "@") {
		render(w, h.templates, h.logger, "profile_page.html", map[string]any{
			"Account": account,
			"Error":   "Enter a valid email address",
		})
		return
	}
	if newEmail == account.Email {
		http.Redirect(w, r, "/settings", http.StatusSeeOther)
		return
	}

	existing, err := h.accounts.GetByEmail(newEmail)
	if err != nil {
		h.logger.Error("email lookup", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		render(w, h.templates, h.logger, "profile_page.html", map[string]any{
			"Account": account,
			"Error":   "That email already has an account",
		})
		return
	}

	if err := h.accounts.UpdateEmail(account.ID, newEmail); err != nil {
		h.logger.Error("update email", "account_id", account.ID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	code, err := h.accounts.RotateEmailVerificationCode(account.ID)
	if err != nil {
		h.logger.Error("rotate email code", "account_id", account.ID, "error", err)
	} else if err := h.email.SendEmailConfirmation(newEmail, code); err != nil {
		h.logger.Error("send email confirmation", "account_id", account.ID, "error", err)
	}

	http.Redirect(w, r, "/verify/email", http.StatusSeeOther)
}
