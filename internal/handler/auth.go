package handler

import (
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/rcalloway/taxdesk/internal/auth"
	"github.com/rcalloway/taxdesk/internal/email"
	"github.com/rcalloway/taxdesk/internal/middleware"
	"github.com/rcalloway/taxdesk/internal/store"
)

type AuthHandler struct {
	accounts  *store.AccountStore
	sessions  *store.SessionStore
	invites   *store.InviteStore
	logins    *store.LoginStore
	email     *email.Client
	templates *template.Template
	logger    *slog.Logger
}

func NewAuthHandler(
	as *store.AccountStore,
	ss *store.SessionStore,
	is *store.InviteStore,
	ls *store.LoginStore,
	ec *email.Client,
	logger *slog.Logger,
) *AuthHandler {
	tmpl := template.Must(template.ParseGlob("web/templates/auth_*.html"))
	return &AuthHandler{
		accounts:  as,
		sessions:  ss,
		invites:   is,
		logins:    ls,
		email:     ec,
		templates: tmpl,
		logger:    logger,
	}
}

func (h *AuthHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	render(w, h.templates, h.logger, "auth_register.html", map[string]any{
		"Next": safeNext(r),
	})
}

// Register creates a preparer account. Clients never register directly; they
// arrive through a firm invitation.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	emailAddr := strings.ToLower(strings.TrimSpace(r.FormValue("email")))
	password := r.FormValue("password")

	if emailAddr == "" || password == "" {
		render(w, h.templates, h.logger, "auth_register.html", map[string]any{
			"Error": "Email and password are required",
		})
		return
	}
	if len(password) < 8 {
		render(w, h.templates, h.logger, "auth_register.html", map[string]any{
			"Error": "Password must be at least 8 characters",
		})
		return
	}

	existing, err := h.accounts.GetByEmail(emailAddr)
	if err != nil {
		h.logger.Error("register lookup", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		render(w, h.templates, h.logger, "auth_register.html", map[string]any{
			"Error": "An account with that email already exists",
		})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	account, err := h.accounts.Create(emailAddr, string(hash), true)
	if err != nil {
		h.logger.Error("create account", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	// Email confirmation starts immediately; the account stays usable for
	// the onboarding steps until a full-access view demands it.
	code, err := h.accounts.RotateEmailVerificationCode(account.ID)
	if err != nil {
		h.logger.Error("rotate email code", "account_id", account.ID, "error", err)
	} else if err := h.email.SendEmailConfirmation(account.Email, code); err != nil {
		h.logger.Warn("send email confirmation", "account_id", account.ID, "error", err)
	}

	h.startSession(w, r, account.ID)
	http.Redirect(w, r, nextOrDefault(r, "/"), http.StatusSeeOther)
}

func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	render(w, h.templates, h.logger, "auth_login.html", map[string]any{
		"Next": safeNext(r),
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	emailAddr := strings.ToLower(strings.TrimSpace(r.FormValue("email")))
	password := r.FormValue("password")

	account, err := h.accounts.GetByEmail(emailAddr)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	// Same failure message whether the email or the password was wrong.
	if account == nil || bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		render(w, h.templates, h.logger, "auth_login.html", map[string]any{
			"Error": "Invalid email or password",
			"Next":  safeNext(r),
		})
		return
	}

	h.startSession(w, r, account.ID)
	http.Redirect(w, r, nextOrDefault(r, "/"), http.StatusSeeOther)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if ac, ok := auth.FromContext(r.Context()); ok && ac.SessionID != 0 {
		if err := h.sessions.Delete(ac.SessionID); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// InviteAcceptPage shows the registration form tied to a firm invitation.
func (h *AuthHandler) InviteAcceptPage(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	inv, err := h.invites.GetValidByToken(token)
	if err != nil {
		h.logger.Error("invite lookup", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if inv == nil {
		render(w, h.templates, h.logger, "auth_invite_invalid.html", nil)
		return
	}
	render(w, h.templates, h.logger, "auth_invite_accept.html", map[string]any{
		"Token": token,
		"Email": inv.Email,
	})
}

// InviteAccept redeems the invitation: the new account joins the inviting
// firm with the invited role.
func (h *AuthHandler) InviteAccept(w http.ResponseWriter, r *http.Request) {
	token := r.FormValue("token")
	password := r.FormValue("password")

	inv, err := h.invites.GetValidByToken(token)
	if err != nil {
		h.logger.Error("invite lookup", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if inv == nil {
		render(w, h.templates, h.logger, "auth_invite_invalid.html", nil)
		return
	}
	if len(password) < 8 {
		render(w, h.templates, h.logger, "auth_invite_accept.html", map[string]any{
			"Token": token,
			"Email": inv.Email,
			"Error": "Password must be at least 8 characters",
		})
		return
	}

	existing, err := h.accounts.GetByEmail(inv.Email)
	if err != nil {
		h.logger.Error("invite account lookup", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		render(w, h.templates, h.logger, "auth_invite_invalid.html", nil)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	account, err := h.accounts.Create(inv.Email, string(hash), inv.Role == "operator")
	if err != nil {
		h.logger.Error("create invited account", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if err := h.accounts.SetFirm(account.ID, inv.FirmID); err != nil {
		h.logger.Error("set firm", "account_id", account.ID, "error", err)
	}
	if inv.IsAdmin {
		if err := h.accounts.SetAdmin(account.ID, true); err != nil {
			h.logger.Error("set admin", "account_id", account.ID, "error", err)
		}
	}
	if err := h.invites.MarkUsed(inv.ID); err != nil {
		h.logger.Error("mark invite used", "invite_id", inv.ID, "error", err)
	}

	// The invitation email proved ownership of the address.
	if err := h.accounts.MarkEmailVerified(account.ID); err != nil {
		h.logger.Error("mark email verified", "account_id", account.ID, "error", err)
	}

	h.startSession(w, r, account.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, accountID int64) {
	sess, err := h.sessions.Create(accountID)
	if err != nil {
		h.logger.Error("create session", "account_id", accountID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if err := h.logins.Record(accountID, middleware.RealIP(r)); err != nil {
		h.logger.Warn("record login", "account_id", accountID, "error", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
}

// safeNext returns the next parameter if it is a local path, else empty.
func safeNext(r *http.Request) string {
	next := r.URL.Query().Get("next")
	if next == "" {
		next = r.FormValue("next")
	}
	if strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") {
		return next
	}
	return ""
}

func nextOrDefault(r *http.Request, def string) string {
	if next := safeNext(r); next != "" {
		return next
	}
	return def
}
