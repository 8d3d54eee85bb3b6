package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/rcalloway/taxdesk/internal/billing"
	"github.com/rcalloway/taxdesk/internal/store"
)

// WebhookHandler keeps local firm standing in sync with Stripe. The gate
// never calls Stripe; these events are the only writer of is_paid and
// trial_end after checkout.
type WebhookHandler struct {
	stripeClient *billing.Client
	firms        *store.FirmStore
	logger       *slog.Logger
}

func NewWebhookHandler(sc *billing.Client, fs *store.FirmStore, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		stripeClient: sc,
		firms:        fs,
		logger:       logger,
	}
}

func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 65536))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	event, err := h.stripeClient.ConstructWebhookEvent(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case "invoice.paid":
		h.handleInvoicePaid(event)
	case "invoice.payment_failed":
		h.handleInvoicePaymentFailed(event)
	case "customer.subscription.updated":
		h.handleSubscriptionUpdated(event)
	case "customer.subscription.deleted":
		h.handleSubscriptionDeleted(event)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) handleInvoicePaid(event stripe.Event) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		h.logger.Error("unmarshal invoice", "error", err)
		return
	}
	if invoice.Customer == nil {
		return
	}

	if err := h.firms.SetPaid(invoice.Customer.ID, true); err != nil {
		h.logger.Error("mark firm paid", "customer", invoice.Customer.ID, "error", err)
		return
	}
	h.logger.Info("firm paid", "customer", invoice.Customer.ID)
}

func (h *WebhookHandler) handleInvoicePaymentFailed(event stripe.Event) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		h.logger.Error("unmarshal invoice", "error", err)
		return
	}
	if invoice.Customer == nil {
		return
	}

	// The firm keeps access until its trial window runs out; with the trial
	// already over this demotes it on the next request.
	if err := h.firms.SetPaid(invoice.Customer.ID, false); err != nil {
		h.logger.Error("mark firm unpaid", "customer", invoice.Customer.ID, "error", err)
		return
	}
	h.logger.Warn("firm payment failed", "customer", invoice.Customer.ID)
}

func (h *WebhookHandler) handleSubscriptionUpdated(event stripe.Event) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("unmarshal subscription", "error", err)
		return
	}
	if sub.Customer == nil {
		return
	}

	if sub.TrialEnd > 0 {
		trialEnd := time.Unix(sub.TrialEnd, 0).UTC()
		if err := h.firms.SetTrialEnd(sub.Customer.ID, trialEnd); err != nil {
			h.logger.Error("set trial end", "customer", sub.Customer.ID, "error", err)
		}
	}

	paid := sub.Status == stripe.SubscriptionStatusActive
	if err := h.firms.SetPaid(sub.Customer.ID, paid); err != nil {
		h.logger.Error("sync subscription status", "customer", sub.Customer.ID, "error", err)
	}
}

func (h *WebhookHandler) handleSubscriptionDeleted(event stripe.Event) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("unmarshal subscription", "error", err)
		return
	}
	if sub.Customer == nil {
		return
	}

	if err := h.firms.SetPaid(sub.Customer.ID, false); err != nil {
		h.logger.Error("mark firm canceled", "customer", sub.Customer.ID, "error", err)
		return
	}
	h.logger.Info("firm subscription canceled", "customer", sub.Customer.ID)
}
