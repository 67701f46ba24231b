package models

// HandlerResponse - ответ обработчиков в форме {code, body}.
// Отказы аутентификации несут message вместо body.
type HandlerResponse struct {
	Code    int         `json:"code"`
	Body    interface{} `json:"body,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ============================================================
// Сводка по сделке (/webhook)
// ============================================================

// TradeSummary - тело успешного ответа /webhook.
// Денежные значения отдаются строками с форматированием ("$200.00", "1.5%").
type TradeSummary struct {
	Ticker         string            `json:"ticker"`
	Interval       string            `json:"interval"`
	Position       PositionSummary   `json:"position"`
	StopLoss       StopLossSummary   `json:"stopLoss"`
	TakeProfit     TakeProfitSummary `json:"takeProfit"`
	RiskAnalysis   RiskSummary       `json:"riskAnalysis"`
	Leverage       LeverageSummary   `json:"leverage"`
	IsTestPlatform bool              `json:"isTestPlatform"`
	IsDryRun       bool              `json:"isDryRun"`
}

type PositionSummary struct {
	Side          string        `json:"side"`
	EntryPrice    string        `json:"entryPrice"`
	TotalSize     string        `json:"totalSize"`
	TotalTokenQty string        `json:"totalTokenQty"`
	Orders        []PositionLeg `json:"orders,omitempty"`
}

// PositionLeg - одна нога DCA
type PositionLeg struct {
	Size     string `json:"size"`
	TokenQty string `json:"tokenQty"`
}

type StopLossSummary struct {
	TriggerPrice    string `json:"triggerPrice"`
	PercentDistance string `json:"percentDistance"`
}

type TakeProfitSummary struct {
	Side               string          `json:"side"`
	TotalSize          string          `json:"totalSize"`
	TotalTokenQty      string          `json:"totalTokenQty"`
	TotalPotentialGain string          `json:"totalPotentialGain"`
	Orders             []TakeProfitLeg `json:"orders"`
}

type TakeProfitLeg struct {
	Size            string `json:"size"`
	Tokens          string `json:"tokens"`
	TriggerPrice    string `json:"triggerPrice"`
	PotentialGain   string `json:"potentialGain"`
	SplitPercentage string `json:"splitPercentage"`
	PercentDistance string `json:"percentDistance"`
}

type RiskSummary struct {
	MaxPortfolioRisk string `json:"maxPortfolioRisk"`
	PortfolioValue   string `json:"portfolioValue"`
	PortfolioRisk    string `json:"portfolioRisk"`
	PotentialLoss    string `json:"potentialLoss"`
}

type LeverageSummary struct {
	Leverage   string `json:"leverage"`
	MarginType string `json:"marginType"`
}

// ============================================================
// /exit и /order-update
// ============================================================

// ExitSummary - тело ответа /exit
type ExitSummary struct {
	UserID               string              `json:"userId,omitempty"`
	Ticker               string              `json:"ticker"`
	ExitSide             string              `json:"exitSide"`
	ExistingPositionSide string              `json:"existingPositionSide"`
	OpenOrders           ExitOpenOrders      `json:"openOrders"`
	OpenPosition         ExitPositionSummary `json:"openPosition"`
	IsTestPlatform       bool                `json:"isTestPlatform"`
	IsDryRun             bool                `json:"isDryRun"`
}

type ExitOpenOrders struct {
	Count       int  `json:"count"`
	IsCancelled bool `json:"isCancelled"`
}

type ExitPositionSummary struct {
	Amount      string `json:"amount"`
	ExitPrice   string `json:"exitPrice"`
	IsCancelled bool   `json:"isCancelled"`
}

// OrderUpdateSummary - тело ответа /order-update
type OrderUpdateSummary struct {
	Ticker          string `json:"ticker"`
	OrdersCancelled bool   `json:"ordersCancelled"`
	StopLossMoved   bool   `json:"stopLossMoved"`
	Message         string `json:"message"`
}
