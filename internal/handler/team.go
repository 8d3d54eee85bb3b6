package handler

import (
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/rcalloway/taxdesk/internal/auth"
	"github.com/rcalloway/taxdesk/internal/email"
	"github.com/rcalloway/taxdesk/internal/model"
	"github.com/rcalloway/taxdesk/internal/store"
)

// maxOperatorSeats caps the preparers a single firm can hold.
const maxOperatorSeats = 10

type TeamHandler struct {
	accounts  *store.AccountStore
	firms     *store.FirmStore
	invites   *store.InviteStore
	sessions  *store.SessionStore
	email     *email.Client
	templates *template.Template
	logger    *slog.Logger
}

func NewTeamHandler(
	as *store.AccountStore,
	fs *store.FirmStore,
	is *store.InviteStore,
	ss *store.SessionStore,
	ec *email.Client,
	logger *slog.Logger,
) *TeamHandler {
	tmpl := template.Must(template.ParseGlob("web/templates/team_*.html"))
	return &TeamHandler{
		accounts:  as,
		firms:     fs,
		invites:   is,
		sessions:  ss,
		email:     ec,
		templates: tmpl,
		logger:    logger,
	}
}

// Page lists the firm's preparers and clients.
func (h *TeamHandler) Page(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())

	operators, err := h.accounts.ListByFirm(*account.FirmID, true)
	if err != nil {
		h.logger.Error("list operators", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	clients, err := h.accounts.ListByFirm(*account.FirmID, false)
	if err != nil {
		h.logger.Error("list clients", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	render(w, h.templates, h.logger, "team_page.html", map[string]any{
		"Operators": operators,
		"Clients":   clients,
		"Self":      account.ID,
		"SeatsLeft": maxOperatorSeats - len(operators),
	})
}

// Invite issues an invitation email for a new preparer or client.
func (h *TeamHandler) Invite(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())
	emailAddr := strings.ToLower(strings.TrimSpace(r.FormValue("email")))
	role := r.FormValue("role")
	isAdmin := r.FormValue("is_admin") == "on"

	if emailAddr == "" || (role != "operator" && role != "client") {
		http.Error(w, "email and role are required", http.StatusBadRequest)
		return
	}
	// Only preparers can be admins.
	if role != "operator" {
		isAdmin = false
	}

	if role == "operator" {
		n, err := h.accounts.CountOperators(*account.FirmID)
		if err != nil {
			h.logger.Error("count operators", "error", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		if n >= maxOperatorSeats {
			render(w, h.templates, h.logger, "team_page.html", map[string]any{
				"Error": "Your firm has no preparer seats left",
			})
			return
		}
	}

	existing, err := h.accounts.GetByEmail(emailAddr)
	if err != nil {
		h.logger.Error("invite lookup", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		render(w, h.templates, h.logger, "team_page.html", map[string]any{
			"Error": "That email already has an account",
		})
		return
	}

	inv, err := h.invites.Create(emailAddr, *account.FirmID, role, isAdmin)
	if err != nil {
		h.logger.Error("create invite", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	firm, err := h.firms.GetByID(*account.FirmID)
	if err != nil || firm == nil {
		h.logger.Error("get firm for invite", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if err := h.email.SendInvite(emailAddr, inv.Token, firm.Name); err != nil {
		h.logger.Warn("send invite", "error", err)
	}

	http.Redirect(w, r, "/team", http.StatusSeeOther)
}

// SetAdmin grants or revokes firm-admin on another preparer.
func (h *TeamHandler) SetAdmin(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())
	target, ok := h.firmMember(w, r, account.ID)
	if !ok {
		return
	}
	if !target.IsOperator {
		http.Error(w, "clients cannot be admins", http.StatusBadRequest)
		return
	}

	grant := r.FormValue("admin") == "on"
	if err := h.accounts.SetAdmin(target.ID, grant); err != nil {
		h.logger.Error("set admin", "account_id", target.ID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/team", http.StatusSeeOther)
}

// Remove deletes a member's account and signs them out everywhere.
func (h *TeamHandler) Remove(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())
	target, ok := h.firmMember(w, r, account.ID)
	if !ok {
		return
	}

	if err := h.sessions.DeleteByAccountID(target.ID); err != nil {
		h.logger.Error("delete sessions", "account_id", target.ID, "error", err)
	}
	if err := h.accounts.Delete(target.ID); err != nil {
		h.logger.Error("delete account", "account_id", target.ID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/team", http.StatusSeeOther)
}

// firmMember resolves the {id} path value to a member of the caller's firm,
// rejecting self-targeting and cross-firm access.
func (h *TeamHandler) firmMember(w http.ResponseWriter, r *http.Request, selfID int64) (*model.Account, bool) {
	account := auth.AccountFromContext(r.Context())

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return nil, false
	}
	if id == selfID {
		http.Error(w, "cannot target your own account", http.StatusBadRequest)
		return nil, false
	}

	t, err := h.accounts.GetByID(id)
	if err != nil {
		h.logger.Error("get member", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return nil, false
	}
	if t == nil || t.FirmID == nil || *t.FirmID != *account.FirmID {
		http.Error(w, "not found", http.StatusNotFound)
		return nil, false
	}
	return t, true
}
