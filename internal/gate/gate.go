// Package gate decides, for each authenticated request to a protected view,
// whether the request may proceed or must be redirected to the next
// onboarding step. The checks run in a fixed order and the first failure
// wins; nothing is cached between requests, so revoking a device or letting
// a subscription lapse demotes the account on its very next request.
package gate

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/rcalloway/taxdesk/internal/model"
)

// State is the verification posture of an account+device pair, computed
// fresh on every evaluation.
type State int

const (
	Ready State = iota
	Unauthenticated
	NeedsPhone
	NeedsVerification
	NeedsEmailVerification
	NeedsFirm
	NeedsPayment
	Disabled
	WrongRole
	NotAdmin
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Unauthenticated:
		return "unauthenticated"
	case NeedsPhone:
		return "needs_phone"
	case NeedsVerification:
		return "needs_verification"
	case NeedsEmailVerification:
		return "needs_email_verification"
	case NeedsFirm:
		return "needs_firm"
	case NeedsPayment:
		return "needs_payment"
	case Disabled:
		return "disabled"
	case WrongRole:
		return "wrong_role"
	case NotAdmin:
		return "not_admin"
	}
	return "unknown"
}

// Level is the minimum account standing a view demands.
type Level int

const (
	// LevelAuthenticated requires only a valid session. Used by the
	// verification and onboarding steps themselves.
	LevelAuthenticated Level = iota
	// LevelVerified additionally requires the phone/device-trust check.
	// Used by the terms and checkout steps, which must be reachable before
	// billing is in good standing.
	LevelVerified
	// LevelFull requires every account-standing check: verification, email
	// confirmation, and (for operators) an active subscription.
	LevelFull
)

// Role restricts a view to one side of the firm/client relationship.
type Role int

const (
	RoleAny Role = iota
	RoleOperator
	RoleClient
)

// Policy is what a route demands of the account. Role and Admin
// restrictions imply LevelFull when the server wires them.
type Policy struct {
	Level Level
	Role  Role
	Admin bool
}

// Standing is the billing snapshot the gate reads for operator accounts.
type Standing struct {
	Active          bool
	HasBillingSetup bool
}

// SubscriptionLookup resolves a firm's billing standing.
type SubscriptionLookup interface {
	Standing(ctx context.Context, firmID int64) (Standing, error)
}

// CodeDispatcher rotates and delivers a fresh phone verification code. It is
// the gate's only side effect; failures are logged and never block the
// redirect.
type CodeDispatcher interface {
	Dispatch(ctx context.Context, account *model.Account) error
}

// AlertSender notifies an account that an unrecognized device tried to use
// its session. Best effort.
type AlertSender interface {
	SendUntrustedDeviceAlert(email, ip string) error
}

// Config names every redirect step and tunable the gate recognizes.
type Config struct {
	LoginURL       string
	PhoneURL       string
	VerifyURL      string
	EmailVerifyURL string
	FirmURL        string
	PaymentURL     string
	DisabledURL    string
	HomeURL        string

	// NextParam carries the originally requested path through login and
	// verification redirects.
	NextParam string

	// DispatchTimeout bounds the code-dispatch side effect. On expiry the
	// dispatch is treated as a delivery failure and the redirect proceeds.
	DispatchTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.NextParam == "" {
		c.NextParam = "next"
	}
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = 5 * time.Second
	}
	return c
}

// Subject is the per-request input: the session's account (nil when
// unauthenticated), whether the presenting device holds unexpired trust, and
// the originally requested path for return-to redirects.
type Subject struct {
	Account       *model.Account
	DeviceTrusted bool
	Path          string
	RemoteIP      string
}

// Decision is the gate's output: either proceed, or redirect to a step.
type Decision struct {
	State    State
	Redirect string
}

// Allowed reports whether the request may reach the view.
func (d Decision) Allowed() bool {
	return d.State == Ready
}

type Gate struct {
	cfg    Config
	subs   SubscriptionLookup
	codes  CodeDispatcher
	alerts AlertSender
	logger *slog.Logger
	now    func() time.Time
}

func New(cfg Config, subs SubscriptionLookup, codes CodeDispatcher, alerts AlertSender, logger *slog.Logger) *Gate {
	return &Gate{
		cfg:    cfg.withDefaults(),
		subs:   subs,
		codes:  codes,
		alerts: alerts,
		logger: logger,
		now:    time.Now,
	}
}

// Evaluate runs the ordered checks for the policy and returns the first
// failure, or Ready. Every branch terminates in a well-formed decision;
// unexpected data states degrade to the most restrictive applicable step.
func (g *Gate) Evaluate(ctx context.Context, sub Subject, pol Policy) Decision {
	// 1. Authentication.
	if sub.Account == nil {
		return Decision{State: Unauthenticated, Redirect: g.withNext(g.cfg.LoginURL, sub.Path)}
	}
	account := sub.Account

	// 2. Phone verification or device trust.
	if pol.Level >= LevelVerified && account.RequiresPhoneVerification() && !sub.DeviceTrusted {
		if account.Phone == nil || *account.Phone == "" {
			// No delivery target yet: collect the number first, dispatch
			// nothing.
			return Decision{State: NeedsPhone, Redirect: g.withNext(g.cfg.PhoneURL, sub.Path)}
		}
		g.dispatchCode(ctx, account, sub.RemoteIP)
		return Decision{State: NeedsVerification, Redirect: g.withNext(g.cfg.VerifyURL, sub.Path)}
	}

	// 3. Email verification. No code is auto-dispatched; the user asks for a
	// resend from the step itself.
	if pol.Level >= LevelFull && !account.IsEmailVerified {
		return Decision{State: NeedsEmailVerification, Redirect: g.cfg.EmailVerifyURL}
	}

	// 4. Subscription standing, operators only.
	if pol.Level >= LevelFull && account.IsOperator {
		if d, ok := g.checkStanding(ctx, account); !ok {
			return d
		}
	}

	// 5. Role routing.
	if pol.Role == RoleClient && account.IsOperator {
		return Decision{State: WrongRole, Redirect: g.cfg.HomeURL}
	}
	if pol.Role == RoleOperator && !account.IsOperator {
		return Decision{State: WrongRole, Redirect: g.cfg.HomeURL}
	}

	// 6. Admin privilege.
	if pol.Admin && !(account.IsOperator && account.IsAdmin) {
		return Decision{State: NotAdmin, Redirect: g.cfg.HomeURL}
	}

	return Decision{State: Ready}
}

func (g *Gate) checkStanding(ctx context.Context, account *model.Account) (Decision, bool) {
	if account.FirmID == nil {
		return Decision{State: NeedsFirm, Redirect: g.cfg.FirmURL}, false
	}

	standing, err := g.subs.Standing(ctx, *account.FirmID)
	if err != nil {
		// Fail closed: an unreadable subscription is treated as inactive.
		g.logger.Error("subscription lookup", "firm_id", *account.FirmID, "error", err)
		return Decision{State: Disabled, Redirect: g.cfg.DisabledURL}, false
	}
	if standing.Active {
		return Decision{}, true
	}
	if !standing.HasBillingSetup {
		return Decision{State: NeedsPayment, Redirect: g.cfg.PaymentURL}, false
	}
	return Decision{State: Disabled, Redirect: g.cfg.DisabledURL}, false
}

// dispatchCode rotates the account's verification code and delivers it,
// alerting the account that an unrecognized device triggered the challenge.
// Delivery failure is logged and otherwise ignored: the user still lands on
// the verification step either way.
func (g *Gate) dispatchCode(ctx context.Context, account *model.Account, ip string) {
	dctx, cancel := context.WithTimeout(ctx, g.cfg.DispatchTimeout)
	defer cancel()

	if err := g.codes.Dispatch(dctx, account); err != nil {
		g.logger.Error("verification code delivery failed",
			"account_id", account.ID, "error", err)
	}
	if g.alerts != nil {
		if err := g.alerts.SendUntrustedDeviceAlert(account.Email, ip); err != nil {
			g.logger.Warn("untrusted device alert", "account_id", account.ID, "error", err)
		}
	}
}

func (g *Gate) withNext(stepURL, path string) string {
	if path == "" {
		return stepURL
	}
	return stepURL + "?" + g.cfg.NextParam + "=" + url.QueryEscape(path)
}
