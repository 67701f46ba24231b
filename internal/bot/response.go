package bot

import (
	"fmt"
	"math"
	"strconv"

	"tradebot/internal/models"
	"tradebot/pkg/utils"
)

// ResponseBuilder собирает сводку по сделке для ответа /webhook
type ResponseBuilder struct {
	Payload *models.WebhookPayload
	Plan    *TradePlan
	Token   *Token
	Account *Account
}

func (b ResponseBuilder) Build() *models.TradeSummary {
	prec := int(b.Token.PriceDecimals())
	p := b.Payload

	return &models.TradeSummary{
		Ticker:         p.Position.Ticker,
		Interval:       strconv.Itoa(p.Interval),
		Position:       b.position(prec),
		StopLoss:       b.stopLoss(prec),
		TakeProfit:     b.takeProfit(prec),
		RiskAnalysis:   b.riskAnalysis(),
		Leverage:       b.leverage(),
		IsTestPlatform: p.IsTestPlatform,
		IsDryRun:       p.IsDryRun,
	}
}

func (b ResponseBuilder) position(prec int) models.PositionSummary {
	entries := b.Plan.Entries
	if len(entries) == 0 {
		return models.PositionSummary{Side: string(b.Payload.Position.Side)}
	}

	var totalSize float64
	legs := make([]models.PositionLeg, 0, len(entries))
	for _, o := range entries {
		size := o.Quantity * o.EntryPrice
		totalSize += size
		legs = append(legs, models.PositionLeg{
			Size:     usd(size),
			TokenQty: tokens(o.Quantity),
		})
	}

	summary := models.PositionSummary{
		Side:          string(entries[0].Side),
		EntryPrice:    price(entries[0].EntryPrice, prec),
		TotalSize:     usd(totalSize),
		TotalTokenQty: tokens(totalQuantity(entries)),
	}
	if len(entries) > 1 {
		summary.Orders = legs
	}
	return summary
}

func (b ResponseBuilder) stopLoss(prec int) models.StopLossSummary {
	sl := b.Plan.StopLoss
	if sl == nil {
		return models.StopLossSummary{}
	}
	return models.StopLossSummary{
		TriggerPrice:    price(sl.TriggerPrice, prec),
		PercentDistance: distance(sl.TriggerPrice, b.Token.Price()),
	}
}

func (b ResponseBuilder) takeProfit(prec int) models.TakeProfitSummary {
	current := b.Token.Price()
	summary := models.TakeProfitSummary{
		Side:   string(b.Payload.Position.Side.Opposite()),
		Orders: make([]models.TakeProfitLeg, 0, len(b.Plan.TakeProfits)),
	}

	var totalSize, totalGain float64
	for _, o := range b.Plan.TakeProfits {
		size := o.Quantity * current
		gain := utils.GainLoss(o.Quantity, o.TriggerPrice, current)
		totalSize += size
		totalGain += gain

		summary.Orders = append(summary.Orders, models.TakeProfitLeg{
			Size:            usd(size),
			Tokens:          tokens(o.Quantity),
			TriggerPrice:    price(o.TriggerPrice, prec),
			PotentialGain:   usd(gain),
			SplitPercentage: percent(o.ExitPercentage),
			PercentDistance: distance(o.TriggerPrice, current),
		})
	}

	summary.TotalSize = usd(totalSize)
	summary.TotalTokenQty = tokens(totalQuantity(b.Plan.TakeProfits))
	summary.TotalPotentialGain = usd(totalGain)
	return summary
}

func (b ResponseBuilder) riskAnalysis() models.RiskSummary {
	r := b.Plan.Risk
	return models.RiskSummary{
		MaxPortfolioRisk: percent(r.MaxPortfolioRisk),
		PortfolioValue:   usd(b.Account.PortfolioValue()),
		PortfolioRisk:    percent(r.PortfolioRisk()),
		PotentialLoss:    usd(r.PotentialLoss()),
	}
}

func (b ResponseBuilder) leverage() models.LeverageSummary {
	lev := b.Payload.Position.Leverage
	if lev <= 0 {
		lev = 1
	}
	return models.LeverageSummary{
		Leverage:   fmt.Sprintf("%dx", lev),
		MarginType: b.Payload.Position.MarginType,
	}
}

// ============================================================
// Форматирование
// ============================================================

func usd(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

func price(v float64, prec int) string {
	return fmt.Sprintf("$%.*f", prec, v)
}

func tokens(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func percent(v float64) string {
	return fmt.Sprintf("%g%%", v)
}

// distance - расстояние от текущей цены в процентах
func distance(target, current float64) string {
	if current == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", math.Abs(target-current)/current*100)
}
