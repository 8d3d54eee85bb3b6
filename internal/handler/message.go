package handler

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rcalloway/taxdesk/internal/auth"
	"github.com/rcalloway/taxdesk/internal/model"
	"github.com/rcalloway/taxdesk/internal/notify"
	"github.com/rcalloway/taxdesk/internal/store"
)

const (
	maxMessageLength = 4000
	previewLength    = 80
)

type MessageHandler struct {
	accounts  *store.AccountStore
	messages  *store.MessageStore
	push      *store.PushStore
	hub       *notify.Hub
	pushSvc   *notify.PushService
	templates *template.Template
	logger    *slog.Logger
}

func NewMessageHandler(
	as *store.AccountStore,
	ms *store.MessageStore,
	ps *store.PushStore,
	hub *notify.Hub,
	pushSvc *notify.PushService,
	logger *slog.Logger,
) *MessageHandler {
	tmpl := template.Must(template.ParseGlob("web/templates/message_*.html"))
	return &MessageHandler{
		accounts:  as,
		messages:  ms,
		push:      ps,
		hub:       hub,
		pushSvc:   pushSvc,
		templates: tmpl,
		logger:    logger,
	}
}

// ConversationPage shows the thread with one counterparty and marks their
// messages read.
func (h *MessageHandler) ConversationPage(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())
	other, ok := h.counterparty(w, r, account)
	if !ok {
		return
	}

	if err := h.messages.MarkConversationRead(account.ID, other.ID); err != nil {
		h.logger.Error("mark read", "error", err)
	}

	thread, err := h.messages.ListConversation(account.ID, other.ID)
	if err != nil {
		h.logger.Error("list conversation", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	render(w, h.templates, h.logger, "message_thread.html", map[string]any{
		"Self":     account.ID,
		"Other":    other,
		"Messages": thread,
	})
}

// Send appends to the thread and notifies the recipient: over WebSocket if
// they have the app open, by web push otherwise.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())
	other, ok := h.counterparty(w, r, account)
	if !ok {
		return
	}

	body := strings.TrimSpace(r.FormValue("body"))
	if body == "" || len(body) > maxMessageLength {
		http.Error(w, "message body is required", http.StatusBadRequest)
		return
	}

	msg, err := h.messages.Create(account.ID, other.ID, body)
	if err != nil {
		h.logger.Error("create message", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	h.notifyRecipient(other.ID, account, msg)

	http.Redirect(w, r, fmt.Sprintf("/messages/%d", other.ID), http.StatusSeeOther)
}

func (h *MessageHandler) notifyRecipient(recipientID int64, sender *model.Account, msg *model.Message) {
	preview := truncatePreview(msg.Body, previewLength)

	unread, err := h.messages.CountUnread(recipientID)
	if err != nil {
		h.logger.Error("count unread", "error", err)
	}

	if h.hub.Connected(recipientID) {
		h.hub.Notify(recipientID, notify.Event{
			Type:     "message",
			SenderID: sender.ID,
			Preview:  preview,
			Unread:   unread,
		})
		return
	}

	if h.pushSvc == nil || !h.pushSvc.Configured() {
		return
	}
	subs, err := h.push.ListByAccount(recipientID)
	if err != nil {
		h.logger.Error("list push subscriptions", "error", err)
		return
	}
	payload := notify.PushPayload{
		Title: fmt.Sprintf("New message from %s", sender.Email),
		Body:  preview,
		URL:   fmt.Sprintf("/messages/%d", sender.ID),
		Tag:   fmt.Sprintf("message-%d", sender.ID),
	}
	for _, sub := range subs {
		if err := h.pushSvc.Send(sub, payload); err != nil {
			if errors.Is(err, notify.ErrExpired) {
				if err := h.push.DeleteByEndpoint(sub.Endpoint); err != nil {
					h.logger.Error("delete expired subscription", "error", err)
				}
			} else {
				h.logger.Warn("send push", "error", err)
			}
		}
	}
}

// counterparty resolves the {id} path value, requiring both sides to belong
// to the same firm.
func (h *MessageHandler) counterparty(w http.ResponseWriter, r *http.Request, account *model.Account) (*model.Account, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return nil, false
	}

	other, err := h.accounts.GetByID(id)
	if err != nil {
		h.logger.Error("get counterparty", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return nil, false
	}
	if other == nil || other.ID == account.ID ||
		account.FirmID == nil || other.FirmID == nil || *other.FirmID != *account.FirmID {
		http.Error(w, "not found", http.StatusNotFound)
		return nil, false
	}
	return other, true
}

// truncatePreview caps the notification preview at max bytes without
// splitting a multi-byte rune.
func truncatePreview(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
