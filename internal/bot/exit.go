package bot

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tradebot/internal/exchange"
	"tradebot/internal/models"
	"tradebot/pkg/utils"
)

// noPositionSide - existingPositionSide при отсутствии позиции
const noPositionSide = "NONE"

// MessageBody - тело ответа, когда обработчик ничего не делает
type MessageBody struct {
	Message string `json:"message"`
}

// ExitHandler закрывает сделку по сигналу выхода
//
// Правила:
// - позиция открыта в другую сторону: ничего не трогаем
// - позиция открыта, стоит трейлинг-стоп и тейк-профитов не осталось:
//   тейк уже сработал, трейлинг ведёт позицию, ничего не трогаем
// - иначе отменяем ордера бота и закрываем позицию рыночным reduce-only
//
// В режиме dry run ничего не отправляется, в ответе isCancelled=true.
type ExitHandler struct {
	Client  exchange.Client
	Markets exchange.Markets
	Payload *models.ExitPayload
	UserID  string
}

func (h *ExitHandler) Handle(ctx context.Context) (*models.HandlerResponse, error) {
	start := time.Now()
	defer func() {
		HandlerLatency.WithLabelValues(models.TradeActionExit).Observe(float64(time.Since(start).Milliseconds()))
	}()

	p := h.Payload
	ticker := strings.ToUpper(strings.TrimSpace(p.Ticker))
	log := utils.L().WithComponent("exit").WithExchange(h.Client.GetName()).WithSymbol(ticker)

	exitSide, err := models.ParseSide(p.ExitSide)
	if err != nil {
		return nil, ErrInvalidExitSide
	}

	openOrders, err := h.Client.GetOpenOrders(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("get open orders %s: %w", ticker, err)
	}
	pos, err := h.Client.GetPosition(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("get position %s: %w", ticker, err)
	}

	existingSide := noPositionSide
	if pos.IsOpen() {
		side := pos.Side
		if !side.Valid() {
			side = models.SideFromAmount(pos.Amount)
		}
		existingSide = string(side)

		if side != exitSide {
			msg := fmt.Sprintf("Current position side is %s and exit alert side is %s. Will not exit current position",
				side, exitSide)
			log.Info(msg)
			return &models.HandlerResponse{Code: http.StatusOK, Body: MessageBody{Message: msg}}, nil
		}

		if hasOrderType(openOrders, models.OrderTypeTrailingStopMarket) &&
			!hasOrderType(openOrders, models.OrderTypeTakeProfitMarket) {
			msg := "Position has hit Take Profit with Trailing Stop in place. Will not cancel position"
			log.Info(msg)
			return &models.HandlerResponse{Code: http.StatusOK, Body: MessageBody{Message: msg}}, nil
		}
	}

	summary := &models.ExitSummary{
		UserID:               h.UserID,
		Ticker:               ticker,
		ExitSide:             string(exitSide),
		ExistingPositionSide: existingSide,
		OpenOrders:           models.ExitOpenOrders{Count: len(openOrders)},
		OpenPosition:         models.ExitPositionSummary{Amount: "0", ExitPrice: "$0"},
		IsTestPlatform:       p.IsTestPlatform,
		IsDryRun:             p.IsDryRun,
	}

	if len(openOrders) > 0 {
		if p.IsDryRun {
			summary.OpenOrders.IsCancelled = true
		} else {
			n, err := CancelBotOrders(ctx, h.Client, ticker, nil)
			if err != nil {
				return nil, err
			}
			summary.OpenOrders.IsCancelled = n > 0
		}
	}

	if pos.IsOpen() {
		token, err := LoadToken(ctx, h.Client, h.Markets, ticker)
		if err != nil {
			return nil, err
		}
		summary.OpenPosition.Amount = tokens(token.RoundQuantity(pos.Amount))
		summary.OpenPosition.ExitPrice = "$" + strconv.FormatFloat(token.RoundPrice(token.Price()), 'f', -1, 64)

		if p.IsDryRun {
			summary.OpenPosition.IsCancelled = true
		} else {
			order, err := models.NewClosePositionOrder(ticker, exitSide.Opposite(), token.RoundQuantity(pos.AbsAmount()))
			if err != nil {
				return nil, err
			}
			cmd := &OrderCommand{Client: h.Client, Label: "exit", Orders: []*models.Order{order}}
			if err := cmd.Execute(ctx); err != nil {
				return nil, err
			}
			summary.OpenPosition.IsCancelled = true
		}
	}

	log.Info("exit processed",
		utils.Side(string(exitSide)),
		utils.Bool("orders_cancelled", summary.OpenOrders.IsCancelled),
		utils.Bool("position_closed", summary.OpenPosition.IsCancelled),
		utils.DryRun(p.IsDryRun),
	)
	return &models.HandlerResponse{Code: http.StatusOK, Body: summary}, nil
}

func hasOrderType(orders []models.OpenOrder, t models.OrderType) bool {
	for _, o := range orders {
		if o.Type == t {
			return true
		}
	}
	return false
}
