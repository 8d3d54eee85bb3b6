package middleware

import (
	"log/slog"
	"net/http"

	"github.com/rcalloway/taxdesk/internal/auth"
	"github.com/rcalloway/taxdesk/internal/gate"
	"github.com/rcalloway/taxdesk/internal/store"
)

const (
	// SessionCookieName carries the login session token.
	SessionCookieName = "taxdesk_session"
	// DeviceCookieName carries the long-lived device trust token.
	DeviceCookieName = "taxdesk_device"
)

// Authenticate resolves the session and device-trust cookies into an
// auth.Context on every request. It never rejects: requests without a valid
// session proceed with a nil account, and route policy decides what that
// means. A recognized device has its trust window slid forward.
func Authenticate(sessions *store.SessionStore, accounts *store.AccountStore, devices *store.DeviceTrustStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var ac auth.Context

			if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
				sess, err := sessions.GetByToken(cookie.Value)
				if err != nil {
					logger.Error("session lookup", "error", err)
				}
				if sess != nil {
					account, err := accounts.GetByID(sess.AccountID)
					if err != nil {
						logger.Error("account lookup", "account_id", sess.AccountID, "error", err)
					}
					if account != nil {
						ac.Account = account
						ac.SessionID = sess.ID
					}
				}
			}

			if ac.Account != nil {
				if cookie, err := r.Cookie(DeviceCookieName); err == nil && cookie.Value != "" {
					trust, err := devices.GetValid(cookie.Value, ac.Account.ID)
					if err != nil {
						logger.Error("device trust lookup", "account_id", ac.Account.ID, "error", err)
					}
					if trust != nil {
						ac.DeviceTrusted = true
						ac.DeviceTrustID = trust.ID
						if err := devices.Touch(trust.ID); err != nil {
							logger.Warn("device trust touch", "trust_id", trust.ID, "error", err)
						}
					}
				}
			}

			ctx := auth.WithContext(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Require evaluates the route's access policy and either lets the request
// through or redirects to the step the account must complete next.
// HTMX-aware: HTMX requests get an HX-Redirect header instead of a 303.
func Require(g *gate.Gate, pol gate.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, _ := auth.FromContext(r.Context())

			d := g.Evaluate(r.Context(), gate.Subject{
				Account:       ac.Account,
				DeviceTrusted: ac.DeviceTrusted,
				Path:          r.URL.Path,
				RemoteIP:      RealIP(r),
			}, pol)

			if !d.Allowed() {
				redirectToStep(w, r, d.Redirect)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func redirectToStep(w http.ResponseWriter, r *http.Request, target string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
