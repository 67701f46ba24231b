package bot

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tradebot/internal/exchange"
	"tradebot/internal/models"
	"tradebot/pkg/utils"
)

// OrderUpdateHandler реагирует на событие ордера, пересланное с биржи
//
// 1. Позиции нет, а ордера выхода бота остались: отменяем ордера бота.
// 2. Сработал тейк-профит и уборки не было: стоп-лосс переносится
//    в безубыток (цена входа позиции).
type OrderUpdateHandler struct {
	Client  exchange.Client
	Payload *models.OrderUpdatePayload
}

func (h *OrderUpdateHandler) Handle(ctx context.Context) (*models.HandlerResponse, error) {
	start := time.Now()
	defer func() {
		HandlerLatency.WithLabelValues(models.TradeActionOrderUpdate).Observe(float64(time.Since(start).Milliseconds()))
	}()

	event := h.Payload.Order.Order
	ticker := strings.ToUpper(event.Symbol)
	log := utils.L().WithComponent("order_update").WithExchange(h.Client.GetName()).WithSymbol(ticker)

	log.Info("order update received",
		utils.String("order_type", event.OrderType),
		utils.String("status", event.Status),
		utils.String("client_order_id", event.ClientOrderID),
	)

	pos, err := h.Client.GetPosition(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("get position %s: %w", ticker, err)
	}

	cancelled, err := h.cleanupRogueOrders(ctx, ticker, pos)
	if err != nil {
		return nil, err
	}

	moved := false
	if strings.Contains(strings.ToUpper(event.OrderType), "PROFIT") && !cancelled {
		if moved, err = h.moveStopLoss(ctx, ticker, pos); err != nil {
			return nil, err
		}
	}

	summary := &models.OrderUpdateSummary{
		Ticker:          ticker,
		OrdersCancelled: cancelled,
		StopLossMoved:   moved,
		Message: fmt.Sprintf("Successfully processed request. Open orders cancelled: %t. Stop Loss moved: %t",
			cancelled, moved),
	}
	return &models.HandlerResponse{Code: http.StatusOK, Body: summary}, nil
}

// cleanupRogueOrders отменяет ордера бота, если позиция закрыта,
// а ордера выхода (SL, TP, трейлинг) остались висеть
func (h *OrderUpdateHandler) cleanupRogueOrders(ctx context.Context, ticker string, pos *models.Position) (bool, error) {
	if pos.IsOpen() {
		return false, nil
	}

	open, err := h.Client.GetOpenOrders(ctx, ticker)
	if err != nil {
		return false, fmt.Errorf("get open orders %s: %w", ticker, err)
	}
	hasExit := false
	for _, o := range open {
		if o.IsBot() && o.Type.IsExit() {
			hasExit = true
			break
		}
	}
	if !hasExit {
		return false, nil
	}

	n, err := CancelBotOrders(ctx, h.Client, ticker, nil)
	if err != nil {
		return false, err
	}
	utils.L().WithComponent("order_update").Info("rogue orders cancelled", utils.Symbol(ticker), utils.Int("count", n))
	return n > 0, nil
}

// moveStopLoss заменяет стоп-ордера на STOP_MARKET по цене входа позиции
func (h *OrderUpdateHandler) moveStopLoss(ctx context.Context, ticker string, pos *models.Position) (bool, error) {
	if !pos.IsOpen() {
		return false, nil
	}

	open, err := h.Client.GetOpenOrders(ctx, ticker)
	if err != nil {
		return false, fmt.Errorf("get open orders %s: %w", ticker, err)
	}
	var stopIDs []string
	for _, o := range open {
		if o.Type.IsStop() {
			stopIDs = append(stopIDs, o.OrderID)
		}
	}
	if len(stopIDs) == 0 {
		return false, nil
	}

	if err := h.Client.CancelOrders(ctx, ticker, stopIDs); err != nil {
		return false, fmt.Errorf("cancel stop orders %s: %w", ticker, err)
	}

	tick, err := h.Client.GetPricePrecision(ctx, ticker)
	if err != nil {
		return false, fmt.Errorf("get price precision %s: %w", ticker, err)
	}
	trigger := utils.RoundToTick(pos.EntryPrice, tick)
	side := models.SideFromAmount(pos.Amount).Opposite()

	order, err := models.NewStopLossOrder(ticker, side, trigger)
	if err != nil {
		return false, err
	}
	cmd := &OrderCommand{Client: h.Client, Label: "stop_loss", Orders: []*models.Order{order}}
	if err := cmd.Execute(ctx); err != nil {
		return false, err
	}

	StopLossMoved.WithLabelValues(h.Client.GetName()).Inc()
	utils.L().WithComponent("order_update").Info("stop loss moved to entry",
		utils.Symbol(ticker),
		utils.Side(string(side)),
		utils.Price(trigger),
	)
	return true, nil
}
