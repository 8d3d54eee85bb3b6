package notify

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/rcalloway/taxdesk/internal/auth"
)

// HandleWebSocket upgrades the connection and runs it as a hub client for
// the signed-in account. Route policy gates access before this runs, but the
// account is checked again since an upgrade without a session is useless.
func HandleWebSocket(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account := auth.AccountFromContext(r.Context())
		if account == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, nil)
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, account.ID)
		client.Run(r.Context())
	}
}
