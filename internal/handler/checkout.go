package handler

import (
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/rcalloway/taxdesk/internal/auth"
	"github.com/rcalloway/taxdesk/internal/billing"
	"github.com/rcalloway/taxdesk/internal/store"
)

const trialLength = 14 * 24 * time.Hour

type CheckoutHandler struct {
	accounts  *store.AccountStore
	firms     *store.FirmStore
	stripe    *billing.Client
	baseURL   string
	templates *template.Template
	logger    *slog.Logger
}

func NewCheckoutHandler(
	as *store.AccountStore,
	fs *store.FirmStore,
	sc *billing.Client,
	baseURL string,
	logger *slog.Logger,
) *CheckoutHandler {
	tmpl := template.Must(template.ParseGlob("web/templates/checkout_*.html"))
	return &CheckoutHandler{
		accounts:  as,
		firms:     fs,
		stripe:    sc,
		baseURL:   baseURL,
		templates: tmpl,
		logger:    logger,
	}
}

// Page shows the subscription offer with the trial terms.
func (h *CheckoutHandler) Page(w http.ResponseWriter, r *http.Request) {
	render(w, h.templates, h.logger, "checkout_start.html", map[string]any{
		"TrialDays": int(trialLength.Hours() / 24),
	})
}

// Start provisions the firm in Stripe: a customer and a trialing
// subscription, recorded locally so the gate sees the firm as active for
// the trial window.
func (h *CheckoutHandler) Start(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())
	if account.FirmID == nil {
		http.Redirect(w, r, "/firm/setup", http.StatusSeeOther)
		return
	}

	firm, err := h.firms.GetByID(*account.FirmID)
	if err != nil || firm == nil {
		h.logger.Error("get firm", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if firm.HasBillingSetup() {
		// Already provisioned; the portal manages changes from here.
		http.Redirect(w, r, "/billing/portal", http.StatusSeeOther)
		return
	}
	if !h.stripe.Configured() {
		render(w, h.templates, h.logger, "checkout_start.html", map[string]any{
			"Error": "Billing is not configured. Contact support.",
		})
		return
	}

	customerID, err := h.stripe.CreateCustomer(account.Email, firm.Name)
	if err != nil {
		h.logger.Error("create customer", "firm_id", firm.ID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	subscriptionID, err := h.stripe.CreateTrialSubscription(customerID)
	if err != nil {
		h.logger.Error("create subscription", "firm_id", firm.ID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	trialEnd := time.Now().UTC().Add(trialLength)
	if err := h.firms.SetBilling(firm.ID, account.ID, customerID, subscriptionID, false, trialEnd); err != nil {
		h.logger.Error("set billing", "firm_id", firm.ID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Portal sends the firm admin to the Stripe billing portal.
func (h *CheckoutHandler) Portal(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())
	if account.FirmID == nil {
		http.Redirect(w, r, "/firm/setup", http.StatusSeeOther)
		return
	}

	firm, err := h.firms.GetByID(*account.FirmID)
	if err != nil || firm == nil || !firm.HasBillingSetup() {
		http.Redirect(w, r, "/billing/checkout", http.StatusSeeOther)
		return
	}

	url, err := h.stripe.CreateBillingPortalSession(*firm.StripeCustomerID, h.baseURL+"/")
	if err != nil {
		h.logger.Error("portal session", "firm_id", firm.ID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}
