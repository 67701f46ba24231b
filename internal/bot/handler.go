package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"tradebot/internal/exchange"
	"tradebot/internal/models"
	"tradebot/pkg/utils"
)

// maxRiskAttempts - построений позиции на один сигнал:
// первое плюс не более двух уменьшений
const maxRiskAttempts = 3

// TradePlan - ордера одного сигнала в порядке отправки
type TradePlan struct {
	Close       *models.Order
	Entries     []*models.Order
	StopLoss    *models.Order
	TakeProfits []*models.Order

	// Placed - ордера, которые биржа приняла. При сбое отправки
	// меньше, чем Orders().
	Placed []*models.Order

	Risk     Risk
	Attempts int
}

// Orders возвращает все ордера плана в порядке отправки
func (p *TradePlan) Orders() []*models.Order {
	var out []*models.Order
	if p.Close != nil {
		out = append(out, p.Close)
	}
	out = append(out, p.Entries...)
	if p.StopLoss != nil {
		out = append(out, p.StopLoss)
	}
	return append(out, p.TakeProfits...)
}

// Quantity - суммарное количество ордеров входа
func (p *TradePlan) Quantity() float64 {
	return totalQuantity(p.Entries)
}

// WebhookHandler - обработка одного торгового сигнала
//
// Конвейер:
//  1. BUILD: ордера входа и стоп-лосс от stake или пересчитанного количества
//  2. RISK_CHECK: риск портфеля, при превышении и autoAdjustForRisk
//     количество уменьшается и сборка повторяется (не больше 3 попыток)
//  3. PROCEED: тейк-профиты от итогового количества
//  4. CONFLICT_CHECK: позиция той же стороны прерывает запрос без ордеров,
//     противоположная закрывается перед входом
//  5. LEVERAGE_UPDATE: плечо и режим маржи
//  6. DISPATCH: отмена ордеров бота, закрытие, вход, SL, TP
//  7. RESPOND: сводка по сделке
//
// Обработчик одноразовый: создаётся на запрос.
type WebhookHandler struct {
	Client  exchange.Client
	Markets exchange.Markets
	Payload *models.WebhookPayload

	// ATR - источник волатильности. nil означает расчёт по свечам Markets.
	ATR       ATRSource
	ATRWindow int

	plan   *TradePlan
	states *stateTracker
}

// Plan - ордера последнего вызова Handle (nil до построения)
func (h *WebhookHandler) Plan() *TradePlan {
	return h.plan
}

// States - пройденные состояния последнего вызова Handle
func (h *WebhookHandler) States() []HandlerState {
	if h.states == nil {
		return nil
	}
	out := make([]HandlerState, len(h.states.history))
	copy(out, h.states.history)
	return out
}

func (h *WebhookHandler) Handle(ctx context.Context) (*models.HandlerResponse, error) {
	start := time.Now()
	defer func() {
		HandlerLatency.WithLabelValues(models.TradeActionEntry).Observe(float64(time.Since(start).Milliseconds()))
	}()

	p := h.Payload
	ticker := p.Position.Ticker
	log := utils.L().WithComponent("webhook").WithExchange(h.Client.GetName()).WithSymbol(ticker)

	h.states = newStateTracker()
	h.plan = &TradePlan{}

	fail := func(err error) (*models.HandlerResponse, error) {
		if moveErr := h.states.moveTo(StateFailed); moveErr != nil {
			log.Error("state machine", utils.Err(moveErr))
		}
		log.Warn("signal rejected", utils.State(string(StateFailed)), utils.Err(err))
		return nil, err
	}
	move := func(to HandlerState) error {
		if err := h.states.moveTo(to); err != nil {
			return err
		}
		log.Debug(StateInfo(to), utils.State(string(to)))
		return nil
	}

	atr := h.ATR
	if atr == nil {
		atr = NewATR(h.Markets, h.ATRWindow)
	}

	token, err := LoadToken(ctx, h.Client, h.Markets, ticker)
	if err != nil {
		return fail(err)
	}
	account, err := LoadAccount(ctx, h.Client)
	if err != nil {
		return fail(err)
	}

	maxRisk := DefaultMaxPortfolioRisk
	if p.Risk.PortfolioRisk != nil {
		maxRisk = *p.Risk.PortfolioRisk
	}

	// ============ BUILD → RISK_CHECK → RETRY|PROCEED ============
	var override *float64
	for attempt := 1; attempt <= maxRiskAttempts; attempt++ {
		h.plan.Attempts = attempt

		posFactory := PositionOrderFactory{
			Request:          p.Position,
			Interval:         p.Interval,
			Account:          account,
			Token:            token,
			ATR:              atr,
			QuantityOverride: override,
		}
		entries, err := posFactory.Create(ctx)
		if err != nil {
			return fail(err)
		}

		slFactory := StopLossOrderFactory{
			Request:  p.StopLoss,
			Ticker:   ticker,
			Side:     p.Position.Side,
			Interval: p.Interval,
			Token:    token,
			ATR:      atr,
		}
		sl, err := slFactory.Create(ctx)
		if err != nil {
			return fail(err)
		}
		h.plan.Entries, h.plan.StopLoss = entries, sl

		if err := move(StateRiskCheck); err != nil {
			return fail(err)
		}

		// риск считается по первой ноге: стоп закрывает позицию раньше,
		// чем исполнятся дальние ноги DCA
		first := entries[0]
		risk := Risk{
			Quantity:         first.Quantity,
			StopPrice:        sl.TriggerPrice,
			EntryPrice:       first.EntryPrice,
			PortfolioValue:   account.PortfolioValue(),
			MaxPortfolioRisk: maxRisk,
		}
		h.plan.Risk = risk

		riskErr := risk.Analyze()
		if riskErr == nil {
			log.Info("position within risk",
				utils.Quantity(risk.Quantity),
				utils.RiskPercent(risk.PortfolioRisk()),
				utils.Attempt(attempt),
			)
			break
		}

		if !p.Risk.AutoAdjustForRisk || attempt == maxRiskAttempts {
			log.Warn("position exceeds maximum risk, no orders placed",
				utils.RiskPercent(risk.PortfolioRisk()),
				utils.Float64("max_risk_pct", maxRisk),
				utils.Attempt(attempt),
			)
			return fail(riskErr)
		}

		qty := risk.AcceptableQuantity()
		override = &qty
		RiskResizes.WithLabelValues(ticker).Inc()
		log.Info("position exceeds maximum risk, retrying with reduced quantity",
			utils.RiskPercent(risk.PortfolioRisk()),
			utils.Quantity(qty),
			utils.Attempt(attempt),
		)

		if err := move(StateRetry); err != nil {
			return fail(err)
		}
		if err := move(StateBuild); err != nil {
			return fail(err)
		}
	}

	if err := move(StateProceed); err != nil {
		return fail(err)
	}

	tpFactory := TakeProfitOrderFactory{
		Request:  p.TakeProfit,
		Ticker:   ticker,
		Side:     p.Position.Side,
		Interval: p.Interval,
		Quantity: h.plan.Quantity(),
		Token:    token,
		ATR:      atr,
	}
	tps, err := tpFactory.Create(ctx)
	if err != nil {
		return fail(err)
	}
	h.plan.TakeProfits = tps

	// ============ CONFLICT_CHECK ============
	if err := move(StateConflictCheck); err != nil {
		return fail(err)
	}
	closeOrder, existing, err := PositionTerminator{Client: h.Client}.BuildCloseOrder(ctx, ticker)
	if err != nil {
		return fail(err)
	}
	if closeOrder != nil {
		// сторона закрытия отличается от входа: открыта позиция той же стороны
		if !closeOrder.IsSameSide(h.plan.Entries[0]) {
			existingSide := existing.Side
			if !existingSide.Valid() {
				existingSide = models.SideFromAmount(existing.Amount)
			}
			return fail(&PositionConflictError{Side: existingSide})
		}
		log.Info("opposite position will be closed before entry",
			utils.Quantity(closeOrder.Quantity),
			utils.Side(string(closeOrder.Side)),
		)
		h.plan.Close = closeOrder
	}

	// ============ LEVERAGE_UPDATE ============
	if err := move(StateLeverageUpdate); err != nil {
		return fail(err)
	}
	leverage := p.Position.Leverage
	if leverage <= 0 {
		leverage = 1
	}
	updater := LeverageUpdater{
		Client:     h.Client,
		Ticker:     ticker,
		Leverage:   leverage,
		MarginType: models.MarginType(p.Position.MarginType),
	}
	if err := updater.Apply(ctx); err != nil {
		return fail(err)
	}

	// ============ DISPATCH ============
	if err := move(StateDispatch); err != nil {
		return fail(err)
	}
	invoker := NewInvoker(&CancelBotOrdersCommand{Client: h.Client, Ticker: ticker})
	if h.plan.Close != nil {
		invoker.Add(&OrderCommand{Client: h.Client, Label: "close", Orders: []*models.Order{h.plan.Close}})
	}
	invoker.Add(&OrderCommand{Client: h.Client, Label: "entries", Orders: h.plan.Entries})
	invoker.Add(&OrderCommand{Client: h.Client, Label: "stop_loss", Orders: []*models.Order{h.plan.StopLoss}})
	invoker.Add(&OrderCommand{Client: h.Client, Label: "take_profits", Orders: h.plan.TakeProfits})

	err = invoker.Run(ctx)
	h.plan.Placed = invoker.PlacedOrders()
	if err != nil {
		log.Error("dispatch interrupted",
			utils.Int("commands_done", len(invoker.Executed())),
			utils.Int("orders_placed", len(h.plan.Placed)),
		)
		return fail(err)
	}

	// ============ RESPOND ============
	if err := move(StateRespond); err != nil {
		return fail(err)
	}
	summary := ResponseBuilder{
		Payload: p,
		Plan:    h.plan,
		Token:   token,
		Account: account,
	}.Build()

	log.Info("signal processed",
		utils.Side(string(p.Position.Side)),
		utils.Quantity(h.plan.Quantity()),
		utils.Int("orders", len(h.plan.Orders())),
		utils.Attempt(h.plan.Attempts),
		utils.Latency(float64(time.Since(start).Milliseconds())),
	)

	return &models.HandlerResponse{Code: http.StatusOK, Body: summary}, nil
}

// IsRejection - ошибка бизнес-правила, а не сбой биржи или сети
func IsRejection(err error) bool {
	return errors.Is(err, ErrRiskTooHigh) ||
		errors.Is(err, ErrPositionOfSameSideAlreadyExists) ||
		errors.Is(err, ErrMissingDCATrigger) ||
		errors.Is(err, ErrMissingTrigger) ||
		errors.Is(err, ErrQuantityTooSmall)
}

func totalQuantity(orders []*models.Order) float64 {
	qtys := make([]float64, len(orders))
	for i, o := range orders {
		qtys[i] = o.Quantity
	}
	return utils.SumExact(qtys)
}

func (p *TradePlan) String() string {
	return fmt.Sprintf("TradePlan{entries=%d sl=%v tps=%d close=%v attempts=%d}",
		len(p.Entries), p.StopLoss != nil, len(p.TakeProfits), p.Close != nil, p.Attempts)
}
