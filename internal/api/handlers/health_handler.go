package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger - проверка доступности базы данных (*sql.DB)
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler отвечает на GET /health.
// Без базы данных (журнал выключен) всегда ok.
type HealthHandler struct {
	db      Pinger
	clients func() int
}

// NewHealthHandler создает HealthHandler. db и clients могут быть nil.
func NewHealthHandler(db Pinger, clients func() int) *HealthHandler {
	return &HealthHandler{db: db, clients: clients}
}

type healthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	WSClients int    `json:"ws_clients"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Database: "disabled"}
	status := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			resp.Status = "degraded"
			resp.Database = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "ok"
		}
	}
	if h.clients != nil {
		resp.WSClients = h.clients()
	}

	writeJSON(w, status, resp)
}
