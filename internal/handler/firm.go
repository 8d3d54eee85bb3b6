package handler

import (
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rcalloway/taxdesk/internal/auth"
	"github.com/rcalloway/taxdesk/internal/store"
)

type FirmHandler struct {
	accounts  *store.AccountStore
	firms     *store.FirmStore
	comms     *store.CommunicationsStore
	messages  *store.MessageStore
	templates *template.Template
	logger    *slog.Logger
}

func NewFirmHandler(
	as *store.AccountStore,
	fs *store.FirmStore,
	cs *store.CommunicationsStore,
	ms *store.MessageStore,
	logger *slog.Logger,
) *FirmHandler {
	tmpl := template.Must(template.ParseGlob("web/templates/firm_*.html"))
	return &FirmHandler{
		accounts:  as,
		firms:     fs,
		comms:     cs,
		messages:  ms,
		templates: tmpl,
		logger:    logger,
	}
}

// Home routes the signed-in account to its side of the app: preparers land
// on the firm dashboard, clients on their own.
func (h *FirmHandler) Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	account := auth.AccountFromContext(r.Context())

	unread, err := h.messages.CountUnread(account.ID)
	if err != nil {
		h.logger.Error("count unread", "account_id", account.ID, "error", err)
	}

	if auth.IsOperator(r.Context()) {
		firm, err := h.firms.GetByID(derefFirmID(account.FirmID))
		if err != nil {
			h.logger.Error("get firm", "error", err)
		}
		clients, err := h.accounts.ListByFirm(derefFirmID(account.FirmID), false)
		if err != nil {
			h.logger.Error("list clients", "error", err)
		}
		render(w, h.templates, h.logger, "firm_dashboard.html", map[string]any{
			"Account": account,
			"Firm":    firm,
			"Clients": clients,
			"Unread":  unread,
		})
		return
	}

	preparers, err := h.accounts.ListByFirm(derefFirmID(account.FirmID), true)
	if err != nil {
		h.logger.Error("list preparers", "error", err)
	}
	render(w, h.templates, h.logger, "firm_client_home.html", map[string]any{
		"Account":   account,
		"Preparers": preparers,
		"Unread":    unread,
	})
}

// SetupPage asks the new preparer for a firm name.
func (h *FirmHandler) SetupPage(w http.ResponseWriter, r *http.Request) {
	render(w, h.templates, h.logger, "firm_setup.html", nil)
}

// Setup creates the firm with the founder as its admin. Billing comes next;
// until checkout completes the firm has no standing and full-access views
// redirect to payment.
func (h *FirmHandler) Setup(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())
	name := strings.TrimSpace(r.FormValue("name"))

	if name == "" {
		render(w, h.templates, h.logger, "firm_setup.html", map[string]any{
			"Error": "Firm name is required",
		})
		return
	}
	if account.FirmID != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	firm, err := h.firms.Create(name)
	if err != nil {
		h.logger.Error("create firm", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if err := h.accounts.SetFirm(account.ID, firm.ID); err != nil {
		h.logger.Error("set firm", "account_id", account.ID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if err := h.accounts.SetAdmin(account.ID, true); err != nil {
		h.logger.Error("set admin", "account_id", account.ID, "error", err)
	}

	http.Redirect(w, r, "/terms", http.StatusSeeOther)
}

// TermsPage shows the service agreement.
func (h *FirmHandler) TermsPage(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())
	c, err := h.comms.GetOrCreate(account.ID)
	if err != nil {
		h.logger.Error("get communications", "account_id", account.ID, "error", err)
	}
	render(w, h.templates, h.logger, "firm_terms.html", map[string]any{
		"Agreed": c != nil && c.AgreedTerms != nil,
	})
}

// TermsAgree records acceptance and moves on to checkout.
func (h *FirmHandler) TermsAgree(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())
	if r.FormValue("agree") != "on" {
		render(w, h.templates, h.logger, "firm_terms.html", map[string]any{
			"Error": "You must accept the terms to continue",
		})
		return
	}
	if err := h.comms.SetAgreedTerms(account.ID, time.Now().UTC()); err != nil {
		h.logger.Error("set agreed terms", "account_id", account.ID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/billing/checkout", http.StatusSeeOther)
}

// DisabledPage is the dead end for firms whose subscription lapsed.
func (h *FirmHandler) DisabledPage(w http.ResponseWriter, r *http.Request) {
	render(w, h.templates, h.logger, "firm_disabled.html", map[string]any{
		"IsAdmin": auth.IsFirmAdmin(r.Context()),
	})
}

func derefFirmID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}
