package handler

import (
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rcalloway/taxdesk/internal/auth"
	"github.com/rcalloway/taxdesk/internal/email"
	"github.com/rcalloway/taxdesk/internal/middleware"
	"github.com/rcalloway/taxdesk/internal/store"
	"github.com/rcalloway/taxdesk/internal/verify"
)

// deviceTrustMaxAge caps the trust cookie's lifetime; the row in device_trust
// is what actually decides validity.
const deviceTrustMaxAge = 30 * 24 * 60 * 60

type VerifyHandler struct {
	accounts  *store.AccountStore
	devices   *store.DeviceTrustStore
	logins    *store.LoginStore
	verifier  *verify.Service
	email     *email.Client
	templates *template.Template
	logger    *slog.Logger
}

func NewVerifyHandler(
	as *store.AccountStore,
	ds *store.DeviceTrustStore,
	ls *store.LoginStore,
	vs *verify.Service,
	ec *email.Client,
	logger *slog.Logger,
) *VerifyHandler {
	tmpl := template.Must(template.ParseGlob("web/templates/verify_*.html"))
	return &VerifyHandler{
		accounts:  as,
		devices:   ds,
		logins:    ls,
		verifier:  vs,
		email:     ec,
		templates: tmpl,
		logger:    logger,
	}
}

// PhoneEntryPage collects the account's phone number. Reached when a
// protected view demanded verification and no number was on file.
func (h *VerifyHandler) PhoneEntryPage(w http.ResponseWriter, r *http.Request) {
	render(w, h.templates, h.logger, "verify_phone.html", map[string]any{
		"Next": safeNext(r),
	})
}

// PhoneEntry saves the number and dispatches the first code to it.
func (h *VerifyHandler) PhoneEntry(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())
	phone := strings.TrimSpace(r.FormValue("phone"))

	if !validPhone(phone) {
		render(w, h.templates, h.logger, "verify_phone.html", map[string]any{
			"Error": "Enter a phone number in international format, like +15552223333",
			"Next":  safeNext(r),
		})
		return
	}

	if err := h.accounts.SetPhone(account.ID, phone); err != nil {
		h.logger.Error("set phone", "account_id", account.ID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if err := h.accounts.Set2FA(account.ID, true); err != nil {
		h.logger.Error("enable 2fa", "account_id", account.ID, "error", err)
	}

	fresh, err := h.accounts.GetByID(account.ID)
	if err != nil || fresh == nil {
		h.logger.Error("reload account", "account_id", account.ID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if err := h.verifier.Dispatch(r.Context(), fresh); err != nil {
		h.logger.Error("dispatch code", "account_id", account.ID, "error", err)
	}

	http.Redirect(w, r, withNext("/verify", safeNext(r)), http.StatusSeeOther)
}

// CodePage shows the code entry form.
func (h *VerifyHandler) CodePage(w http.ResponseWriter, r *http.Request) {
	render(w, h.templates, h.logger, "verify_code.html", map[string]any{
		"Next": safeNext(r),
	})
}

// Code checks the submitted code. On a match the account is marked verified
// and the presenting device earns a trust cookie, so subsequent requests
// skip the challenge.
func (h *VerifyHandler) Code(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())
	code := strings.ToUpper(strings.TrimSpace(r.FormValue("code")))

	if account.VerificationCode == nil || code == "" || code != *account.VerificationCode {
		render(w, h.templates, h.logger, "verify_code.html", map[string]any{
			"Error": "Incorrect code. Check the message and try again.",
			"Next":  safeNext(r),
		})
		return
	}

	if err := h.accounts.MarkVerified(account.ID); err != nil {
		h.logger.Error("mark verified", "account_id", account.ID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	trust, err := h.devices.Create(account.ID)
	if err != nil {
		h.logger.Error("create device trust", "account_id", account.ID, "error", err)
	} else {
		http.SetCookie(w, &http.Cookie{
			Name:     middleware.DeviceCookieName,
			Value:    trust.Token,
			Path:     "/",
			MaxAge:   deviceTrustMaxAge,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Secure:   r.TLS != nil,
		})

		// Sign out every other device when asked to.
		if r.FormValue("revoke_others") == "on" {
			n, err := h.devices.RevokeOthers(account.ID, trust.ID)
			if err != nil {
				h.logger.Error("revoke other devices", "account_id", account.ID, "error", err)
			} else if n > 0 {
				h.logger.Info("revoked devices", "account_id", account.ID, "count", n)
			}
		}
	}

	http.Redirect(w, r, nextOrDefault(r, "/"), http.StatusSeeOther)
}

// Resend rotates and redelivers the code.
func (h *VerifyHandler) Resend(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())
	if err := h.verifier.Dispatch(r.Context(), account); err != nil {
		h.logger.Error("resend code", "account_id", account.ID, "error", err)
	}
	http.Redirect(w, r, withNext("/verify", safeNext(r)), http.StatusSeeOther)
}

// EmailPage shows the "check your inbox" step with a resend control.
func (h *VerifyHandler) EmailPage(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())
	render(w, h.templates, h.logger, "verify_email.html", map[string]any{
		"Email": account.Email,
	})
}

// EmailResend mints a fresh confirmation code and emails it.
func (h *VerifyHandler) EmailResend(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())

	code, err := h.accounts.RotateEmailVerificationCode(account.ID)
	if err != nil {
		h.logger.Error("rotate email code", "account_id", account.ID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if err := h.email.SendEmailConfirmation(account.Email, code); err != nil {
		h.logger.Warn("send email confirmation", "account_id", account.ID, "error", err)
	}
	http.Redirect(w, r, "/verify/email", http.StatusSeeOther)
}

// EmailConfirm redeems the emailed code. It works without a session so the
// link can be opened anywhere, but only the current code succeeds.
func (h *VerifyHandler) EmailConfirm(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		render(w, h.templates, h.logger, "verify_email_invalid.html", nil)
		return
	}

	account, err := h.accounts.GetByEmailVerificationCode(code)
	if err != nil {
		h.logger.Error("email code lookup", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if account == nil {
		render(w, h.templates, h.logger, "verify_email_invalid.html", nil)
		return
	}

	if err := h.accounts.MarkEmailVerified(account.ID); err != nil {
		h.logger.Error("mark email verified", "account_id", account.ID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	render(w, h.templates, h.logger, "verify_email_done.html", nil)
}

// DevicesPage lists the account's trusted devices and recent sign-ins.
func (h *VerifyHandler) DevicesPage(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())

	devices, err := h.devices.ListByAccount(account.ID)
	if err != nil {
		h.logger.Error("list devices", "account_id", account.ID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	logins, err := h.logins.ListRecent(account.ID, 20)
	if err != nil {
		h.logger.Error("list logins", "account_id", account.ID, "error", err)
	}

	ac, _ := auth.FromContext(r.Context())
	render(w, h.templates, h.logger, "verify_devices.html", map[string]any{
		"Devices":   devices,
		"Logins":    logins,
		"CurrentID": ac.DeviceTrustID,
	})
}

// DeviceRevoke drops one trusted device; its next request re-verifies.
func (h *VerifyHandler) DeviceRevoke(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := h.devices.Revoke(account.ID, id); err != nil {
		h.logger.Error("revoke device", "account_id", account.ID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/devices", http.StatusSeeOther)
}

// DevicesRevokeOthers keeps the current device and signs out the rest.
func (h *VerifyHandler) DevicesRevokeOthers(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	account := ac.Account

	n, err := h.devices.RevokeOthers(account.ID, ac.DeviceTrustID)
	if err != nil {
		h.logger.Error("revoke other devices", "account_id", account.ID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	h.logger.Info("revoked devices", "account_id", account.ID, "count", n)
	http.Redirect(w, r, "/devices", http.StatusSeeOther)
}

func withNext(base, next string) string {
	if next == "" {
		return base
	}
	return base + "?next=" + url.QueryEscape(next)
}

// validPhone accepts E.164-style numbers.
func validPhone(phone string) bool {
	if !strings.HasPrefix(phone, "+") || len(phone) < 8 || len(phone) > 16 {
		return false
	}
	for _, c := range phone[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
