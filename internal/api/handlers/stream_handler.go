package handlers

import (
	"errors"
	"net/http"

	"tradebot/internal/config"
	"tradebot/internal/websocket"
)

// Authenticator проверяет userId и ключ бота
type Authenticator interface {
	Authenticate(userID, auth string) error
}

// StreamHandler подписывает клиента на сделки пользователя
// GET /ws/stream?userId=&auth=
type StreamHandler struct {
	hub  *websocket.Hub
	auth Authenticator
}

// NewStreamHandler создает новый StreamHandler
func NewStreamHandler(hub *websocket.Hub, auth Authenticator) *StreamHandler {
	return &StreamHandler{hub: hub, auth: auth}
}

// ServeWS проверяет пользователя до апгрейда соединения
func (h *StreamHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get(userIDParam)

	if err := h.auth.Authenticate(userID, q.Get("auth")); err != nil {
		if errors.Is(err, config.ErrUnknownUser) {
			writeError(w, http.StatusUnauthorized, "invalid_user", "Invalid user")
			return
		}
		writeError(w, http.StatusUnauthorized, "auth_failed", "Authentication Failed!")
		return
	}

	websocket.ServeWS(h.hub, w, r, userID)
}
