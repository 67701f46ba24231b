package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"tradebot/internal/config"
	"tradebot/internal/models"
	"tradebot/internal/repository"
	"tradebot/internal/service"
)

// userIDParam - query параметр с идентификатором пользователя
const userIDParam = "userId"

// TradeServiceInterface определяет интерфейс сервиса сделок для handler
type TradeServiceInterface interface {
	HandleWebhook(ctx context.Context, userID string, p *models.WebhookPayload) *models.HandlerResponse
	HandleExit(ctx context.Context, userID string, p *models.ExitPayload) *models.HandlerResponse
	HandleOrderUpdate(ctx context.Context, userID string, p *models.OrderUpdatePayload) *models.HandlerResponse
	ListTrades(ctx context.Context, userID, auth string, filter models.TradeFilter) ([]*models.TradeRecord, error)
	GetTrade(ctx context.Context, userID, auth, id string) (*models.TradeRecord, error)
}

// TradeHandler принимает торговые сигналы
//
// Маршруты:
// - POST /webhook?userId= - сигнал входа
// - POST /exit?userId= - сигнал выхода
// - POST /order-update?userId= - событие ордера с биржи
// - GET /trades?userId=&auth= - журнал сделок
// - GET /trades/{id}?userId=&auth= - сделка с ордерами
//
// HTTP статус ответа совпадает с полем code тела.
type TradeHandler struct {
	service TradeServiceInterface
}

// NewTradeHandler создает новый TradeHandler
func NewTradeHandler(svc TradeServiceInterface) *TradeHandler {
	return &TradeHandler{service: svc}
}

// Webhook исполняет торговый сигнал
// POST /webhook
func (h *TradeHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var payload models.WebhookPayload
	if !h.decode(w, r, &payload) {
		return
	}
	resp := h.service.HandleWebhook(r.Context(), r.URL.Query().Get(userIDParam), &payload)
	writeJSON(w, resp.Code, resp)
}

// Exit закрывает позицию по сигналу выхода
// POST /exit
func (h *TradeHandler) Exit(w http.ResponseWriter, r *http.Request) {
	var payload models.ExitPayload
	if !h.decode(w, r, &payload) {
		return
	}
	resp := h.service.HandleExit(r.Context(), r.URL.Query().Get(userIDParam), &payload)
	writeJSON(w, resp.Code, resp)
}

// OrderUpdate обрабатывает событие ордера
// POST /order-update
func (h *TradeHandler) OrderUpdate(w http.ResponseWriter, r *http.Request) {
	var payload models.OrderUpdatePayload
	if !h.decode(w, r, &payload) {
		return
	}
	resp := h.service.HandleOrderUpdate(r.Context(), r.URL.Query().Get(userIDParam), &payload)
	writeJSON(w, resp.Code, resp)
}

// ListTrades возвращает последние сделки пользователя
// GET /trades?ticker=&limit=
func (h *TradeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := models.TradeFilter{Ticker: q.Get("ticker")}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	trades, err := h.service.ListTrades(r.Context(), q.Get(userIDParam), q.Get("auth"), filter)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if trades == nil {
		trades = []*models.TradeRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"trades": trades,
		"total":  len(trades),
	})
}

// GetTrade возвращает сделку с ордерами
// GET /trades/{id}
func (h *TradeHandler) GetTrade(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	trade, err := h.service.GetTrade(r.Context(), q.Get(userIDParam), q.Get("auth"), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trade)
}

// decode читает тело запроса. При ошибке отвечает 400 в форме {code, body}.
func (h *TradeHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := decodeBody(w, r, v); err != nil {
		writeJSON(w, http.StatusBadRequest, models.HandlerResponse{
			Code: http.StatusBadRequest,
			Body: "invalid JSON payload: " + err.Error(),
		})
		return false
	}
	return true
}

func (h *TradeHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, config.ErrUnknownUser):
		writeError(w, http.StatusUnauthorized, "invalid_user", "Invalid user")
	case errors.Is(err, config.ErrAuthenticationFailed):
		writeError(w, http.StatusUnauthorized, "auth_failed", "Authentication Failed!")
	case errors.Is(err, repository.ErrTradeNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, service.ErrJournalDisabled):
		writeError(w, http.StatusServiceUnavailable, "journal_disabled", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}
