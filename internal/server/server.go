package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rcalloway/taxdesk/internal/billing"
	"github.com/rcalloway/taxdesk/internal/docstore"
	"github.com/rcalloway/taxdesk/internal/email"
	"github.com/rcalloway/taxdesk/internal/gate"
	"github.com/rcalloway/taxdesk/internal/handler"
	"github.com/rcalloway/taxdesk/internal/middleware"
	"github.com/rcalloway/taxdesk/internal/notify"
	"github.com/rcalloway/taxdesk/internal/reminder"
	"github.com/rcalloway/taxdesk/internal/sms"
	"github.com/rcalloway/taxdesk/internal/store"
	"github.com/rcalloway/taxdesk/internal/verify"
)

// VAPIDConfig holds the web push signing keys.
type VAPIDConfig struct {
	PublicKey  string
	PrivateKey string
	Subscriber string
}

type Server struct {
	db          *sql.DB
	hub         *notify.Hub
	gate        *gate.Gate
	authH       *handler.AuthHandler
	verifyH     *handler.VerifyHandler
	firmH       *handler.FirmHandler
	checkoutH   *handler.CheckoutHandler
	webhookH    *handler.WebhookHandler
	teamH       *handler.TeamHandler
	messageH    *handler.MessageHandler
	documentH   *handler.DocumentHandler
	profileH    *handler.ProfileHandler
	pushH       *handler.PushHandler
	accounts    *store.AccountStore
	sessions    *store.SessionStore
	devices     *store.DeviceTrustStore
	invites     *store.InviteStore
	rateLimiter *middleware.RateLimiter
	reminders   *reminder.Scheduler
	logger      *slog.Logger
}

func New(
	db *sql.DB,
	emailClient *email.Client,
	smsClient *sms.Client,
	billingCfg billing.Config,
	storageCfg docstore.Config,
	vapid VAPIDConfig,
	baseURL string,
	logger *slog.Logger,
) *Server {
	hub := notify.NewHub(logger.With("component", "notify"))

	accountStore := store.NewAccountStore(db)
	firmStore := store.NewFirmStore(db)
	sessionStore := store.NewSessionStore(db)
	deviceStore := store.NewDeviceTrustStore(db)
	inviteStore := store.NewInviteStore(db)
	loginStore := store.NewLoginStore(db)
	commsStore := store.NewCommunicationsStore(db)
	messageStore := store.NewMessageStore(db)
	documentStore := store.NewDocumentStore(db)
	pushStore := store.NewPushStore(db)

	verifySvc := verify.NewService(accountStore, smsClient, emailClient, logger.With("component", "verify"))
	stripeClient := billing.NewClient(billingCfg)
	standingSvc := billing.NewStandingService(firmStore)
	objectSvc := docstore.NewService(storageCfg)

	var pushSvc *notify.PushService
	var pushH *handler.PushHandler
	if vapid.PublicKey != "" && vapid.PrivateKey != "" {
		pushSvc = notify.NewPushService(vapid.PublicKey, vapid.PrivateKey, vapid.Subscriber)
		pushH = handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push"))
	}

	g := gate.New(gate.Config{
		LoginURL:       "/login",
		PhoneURL:       "/verify/phone",
		VerifyURL:      "/verify",
		EmailVerifyURL: "/verify/email",
		FirmURL:        "/firm/setup",
		PaymentURL:     "/billing/checkout",
		DisabledURL:    "/disabled",
		HomeURL:        "/",
	}, standingSvc, verifySvc, emailClient, logger.With("component", "gate"))

	reminderSched := reminder.NewScheduler(commsStore, accountStore, emailClient, logger.With("component", "reminder"))

	return &Server{
		db:          db,
		hub:         hub,
		gate:        g,
		authH:       handler.NewAuthHandler(accountStore, sessionStore, inviteStore, loginStore, emailClient, logger.With("component", "auth")),
		verifyH:     handler.NewVerifyHandler(accountStore, deviceStore, loginStore, verifySvc, emailClient, logger.With("component", "verify_handler")),
		firmH:       handler.NewFirmHandler(accountStore, firmStore, commsStore, messageStore, logger.With("component", "firm")),
		checkoutH:   handler.NewCheckoutHandler(accountStore, firmStore, stripeClient, baseURL, logger.With("component", "checkout")),
		webhookH:    handler.NewWebhookHandler(stripeClient, firmStore, logger.With("component", "webhook")),
		teamH:       handler.NewTeamHandler(accountStore, firmStore, inviteStore, sessionStore, emailClient, logger.With("component", "team")),
		messageH:    handler.NewMessageHandler(accountStore, messageStore, pushStore, hub, pushSvc, logger.With("component", "message")),
		documentH:   handler.NewDocumentHandler(accountStore, documentStore, objectSvc, logger.With("component", "document")),
		profileH:    handler.NewProfileHandler(accountStore, emailClient, logger.With("component", "profile")),
		pushH:       pushH,
		accounts:    accountStore,
		sessions:    sessionStore,
		devices:     deviceStore,
		invites:     inviteStore,
		rateLimiter: middleware.NewRateLimiter(),
		reminders:   reminderSched,
		logger:      logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessions
}

// DeviceTrustStore returns the device trust store for cleanup tasks.
func (s *Server) DeviceTrustStore() *store.DeviceTrustStore {
	return s.devices
}

// InviteStore returns the invite store for cleanup tasks.
func (s *Server) InviteStore() *store.InviteStore {
	return s.invites
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// ReminderScheduler returns the registration reminder scheduler.
func (s *Server) ReminderScheduler() *reminder.Scheduler {
	return s.reminders
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes. The authenticate middleware still resolves the session
	// for these, so signed-in visitors hitting /login can be bounced home.
	mux.HandleFunc("GET /login", s.authH.LoginPage)
	mux.HandleFunc("POST /login", s.rateLimited(s.authH.Login))
	mux.HandleFunc("GET /register", s.authH.RegisterPage)
	mux.HandleFunc("POST /register", s.rateLimited(s.authH.Register))
	mux.HandleFunc("GET /invite/accept", s.authH.InviteAcceptPage)
	mux.HandleFunc("POST /invite/accept", s.rateLimited(s.authH.InviteAccept))
	mux.HandleFunc("GET /verify/email/confirm", s.verifyH.EmailConfirm)
	mux.HandleFunc("POST /webhooks/stripe", s.webhookH.HandleStripeWebhook)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir("web/static"))))
	mux.HandleFunc("GET /health", s.healthHandler)

	// Signed in, but not necessarily verified. These are the steps an
	// account works through on its way to good standing.
	authed := gate.Policy{Level: gate.LevelAuthenticated}
	s.handle(mux, "POST /logout", authed, s.authH.Logout)
	s.handle(mux, "GET /verify/phone", authed, s.verifyH.PhoneEntryPage)
	s.handle(mux, "POST /verify/phone", authed, s.rateLimited(s.verifyH.PhoneEntry))
	s.handle(mux, "GET /verify", authed, s.verifyH.CodePage)
	s.handle(mux, "POST /verify", authed, s.rateLimited(s.verifyH.Code))
	s.handle(mux, "POST /verify/resend", authed, s.rateLimited(s.verifyH.Resend))
	s.handle(mux, "GET /verify/email", authed, s.verifyH.EmailPage)
	s.handle(mux, "POST /verify/email/resend", authed, s.rateLimited(s.verifyH.EmailResend))
	s.handle(mux, "GET /firm/setup", authed, s.firmH.SetupPage)
	s.handle(mux, "POST /firm/setup", authed, s.firmH.Setup)
	s.handle(mux, "GET /disabled", authed, s.firmH.DisabledPage)

	// Verified but possibly without billing in place yet. Terms and checkout
	// must stay reachable when the subscription check would fail.
	verified := gate.Policy{Level: gate.LevelVerified}
	s.handle(mux, "GET /terms", verified, s.firmH.TermsPage)
	s.handle(mux, "POST /terms", verified, s.firmH.TermsAgree)
	s.handle(mux, "GET /billing/checkout", verified, s.checkoutH.Page)
	s.handle(mux, "POST /billing/checkout", verified, s.checkoutH.Start)
	s.handle(mux, "GET /billing/portal", verified, s.checkoutH.Portal)

	// The application proper: every standing check passes.
	full := gate.Policy{Level: gate.LevelFull}
	s.handle(mux, "GET /{$}", full, s.firmH.Home)
	s.handle(mux, "GET /settings", full, s.profileH.Page)
	s.handle(mux, "POST /settings/name", full, s.profileH.UpdateName)
	s.handle(mux, "POST /settings/email", full, s.profileH.UpdateEmail)
	s.handle(mux, "GET /devices", full, s.verifyH.DevicesPage)
	s.handle(mux, "POST /devices/{id}/revoke", full, s.verifyH.DeviceRevoke)
	s.handle(mux, "POST /devices/revoke-others", full, s.verifyH.DevicesRevokeOthers)
	s.handle(mux, "GET /messages/{id}", full, s.messageH.ConversationPage)
	s.handle(mux, "POST /messages/{id}", full, s.messageH.Send)
	s.handle(mux, "GET /documents/{id}", full, s.documentH.ListPage)
	s.handle(mux, "POST /documents/{id}", full, s.documentH.Upload)
	s.handle(mux, "GET /documents/file/{id}", full, s.documentH.Download)
	s.handle(mux, "POST /documents/file/{id}/delete", full, s.documentH.Delete)
	s.handle(mux, "GET /ws", full, notify.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))

	if s.pushH != nil {
		s.handle(mux, "GET /api/push/vapid-key", full, s.pushH.VAPIDKey)
		s.handle(mux, "POST /api/push/subscribe", full, s.pushH.Subscribe)
		s.handle(mux, "POST /api/push/unsubscribe", full, s.pushH.Unsubscribe)
	}

	// Firm administration is preparer-side only.
	operator := gate.Policy{Level: gate.LevelFull, Role: gate.RoleOperator}
	admin := gate.Policy{Level: gate.LevelFull, Role: gate.RoleOperator, Admin: true}
	s.handle(mux, "GET /team", operator, s.teamH.Page)
	s.handle(mux, "POST /team/invite", admin, s.teamH.Invite)
	s.handle(mux, "POST /team/{id}/admin", admin, s.teamH.SetAdmin)
	s.handle(mux, "POST /team/{id}/remove", admin, s.teamH.Remove)

	authenticate := middleware.Authenticate(s.sessions, s.accounts, s.devices, s.logger.With("component", "session"))
	return middleware.RequestLogger(s.logger.With("component", "http"))(authenticate(mux))
}

func (s *Server) handle(mux *http.ServeMux, pattern string, pol gate.Policy, h http.HandlerFunc) {
	mux.Handle(pattern, middleware.Require(s.gate, pol)(h))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(h).ServeHTTP(w, r)
	}
}
