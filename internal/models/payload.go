package models

// WebhookPayload - тело POST /webhook.
//
// Необязательные числовые поля - указатели, чтобы отличать
// отсутствие значения от нуля.
type WebhookPayload struct {
	Auth           string            `json:"auth" validate:"required"`
	Interval       int               `json:"interval" validate:"required,oneof=1 3 5 15 30 60 120 240 360 480 720"`
	IsTestPlatform bool              `json:"isTestPlatform"`
	IsDryRun       bool              `json:"isDryRun"`
	Position       PositionRequest   `json:"position"`
	Risk           RiskRequest       `json:"risk"`
	StopLoss       StopLossRequest   `json:"stopLoss"`
	TakeProfit     TakeProfitRequest `json:"takeProfit"`
}

// PositionRequest - параметры входа
type PositionRequest struct {
	Ticker            string    `json:"ticker" validate:"required,symbol"`
	Side              Side      `json:"side" validate:"required,oneof=BUY SELL"`
	Stake             float64   `json:"stake" validate:"gt=0,lte=100"`
	MarginType        string    `json:"marginType" validate:"omitempty,oneof=ISOLATED CROSS"`
	Leverage          int       `json:"leverage" validate:"omitempty,min=1,max=124"`
	DCAATRMultipliers []float64 `json:"dcaAtrMultipliers" validate:"omitempty,dive,gt=0"`
	DCATriggerPrices  []float64 `json:"dcaTriggerPrices" validate:"omitempty,dive,gt=0"`
	DCAPercentages    []float64 `json:"dcaPercentages" validate:"omitempty,dive,gt=0,lte=100"`
}

// HasDCA - запрошен вход несколькими лимитными ногами
func (p PositionRequest) HasDCA() bool {
	return len(p.DCAPercentages) > 0
}

// RiskRequest - ограничение риска
type RiskRequest struct {
	PortfolioRisk     *float64 `json:"portfolioRisk" validate:"required,gt=0,lt=100"`
	AutoAdjustForRisk bool     `json:"autoAdjustForRisk"`
}

// StopLossRequest - ровно одно из двух полей
type StopLossRequest struct {
	ATRMultiplier *float64 `json:"atrMultiplier" validate:"omitempty,gt=0"`
	TriggerPrice  *float64 `json:"triggerPrice" validate:"omitempty,gt=0"`
}

// TakeProfitRequest - ноги тейк-профита
type TakeProfitRequest struct {
	Splits                   []float64 `json:"splits" validate:"required,min=1,dive,gt=0,lte=100"`
	ATRMultipliers           []float64 `json:"atrMultipliers" validate:"omitempty,dive,gt=0"`
	TriggerPrices            []float64 `json:"triggerPrices" validate:"omitempty,dive,gt=0"`
	UseLimitOrder            bool      `json:"useLimitOrder"`
	LimitOrderATRMultipliers []float64 `json:"limitOrderAtrMultipliers" validate:"omitempty,dive,gt=0"`
}

// ExitPayload - тело POST /exit
type ExitPayload struct {
	Auth           string `json:"auth"`
	Ticker         string `json:"ticker" validate:"required,symbol"`
	ExitSide       string `json:"exitSide"`
	IsTestPlatform bool   `json:"isTestPlatform"`
	IsDryRun       bool   `json:"isDryRun"`
}

// OrderUpdatePayload - событие ORDER_TRADE_UPDATE, пересланное пользователем
type OrderUpdatePayload struct {
	Auth     string           `json:"auth"`
	Exchange string           `json:"exchange" validate:"required"`
	IsDryRun bool             `json:"isDryRun"`
	Order    OrderUpdateEvent `json:"order"`
}

// OrderUpdateEvent повторяет вложенность user data stream Binance
type OrderUpdateEvent struct {
	EventType       string          `json:"e"`
	EventTime       int64           `json:"E"`
	TransactionTime int64           `json:"T"`
	Order           OrderUpdateData `json:"o"`
}

// OrderUpdateData - поля ордера из события.
// Ключи различаются регистром (s/S, x/X), поэтому обе пары объявлены явно.
type OrderUpdateData struct {
	Symbol        string `json:"s" validate:"required,symbol"`
	ClientOrderID string `json:"c"`
	Side          string `json:"S"`
	OrderType     string `json:"ot"`
	ExecutionType string `json:"x"`
	Status        string `json:"X"`
}
