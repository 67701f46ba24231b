package bot

import (
	"math"

	"github.com/shopspring/decimal"

	"tradebot/pkg/utils"
)

// DefaultMaxPortfolioRisk - допустимый риск портфеля в процентах,
// если в запросе не задан свой
const DefaultMaxPortfolioRisk = 1.5

// Risk - расчёт риска одной попытки входа
//
// Функции:
// - Потенциальный убыток при срабатывании стоп-лосса
// - Риск в процентах от портфеля
// - Проверка против максимума
// - Количество, при котором риск ровно равен максимуму
//
// Значение создаётся заново на каждой попытке и не хранит состояния.
type Risk struct {
	Quantity         float64
	StopPrice        float64
	EntryPrice       float64
	PortfolioValue   float64
	MaxPortfolioRisk float64
}

// PotentialLoss - |qty*stop - qty*entry|, до центов
func (r Risk) PotentialLoss() float64 {
	return utils.GainLoss(r.Quantity, r.StopPrice, r.EntryPrice)
}

// PortfolioRisk - убыток в процентах от портфеля, 2 знака.
// При пустом портфеле риск бесконечен.
func (r Risk) PortfolioRisk() float64 {
	if r.PortfolioValue <= 0 {
		return math.Inf(1)
	}
	return utils.RoundTo(r.PotentialLoss()/r.PortfolioValue*100, 2)
}

// Analyze возвращает *RiskTooHighError, если риск строго больше максимума
func (r Risk) Analyze() error {
	risk := r.PortfolioRisk()
	if risk > r.MaxPortfolioRisk {
		return &RiskTooHighError{Risk: risk, MaxRisk: r.MaxPortfolioRisk}
	}
	return nil
}

// AcceptableQuantity уменьшает количество пропорционально превышению:
// qty / (loss / (portfolio * max/100)). Расстояние до стопа не меняется.
func (r Risk) AcceptableQuantity() float64 {
	loss := r.PotentialLoss()
	if loss == 0 {
		return r.Quantity
	}
	maxLoss := decimal.NewFromFloat(r.PortfolioValue).
		Mul(decimal.NewFromFloat(r.MaxPortfolioRisk)).
		Div(decimal.NewFromInt(100))
	qty, _ := decimal.NewFromFloat(r.Quantity).
		Mul(maxLoss).
		Div(decimal.NewFromFloat(loss)).
		Float64()
	return qty
}
