package bot

import (
	"context"
	"fmt"

	"tradebot/internal/models"
	"tradebot/pkg/utils"
)

// PositionOrderFactory строит ордера входа: один рыночный ордер
// или несколько лимитных ног DCA.
type PositionOrderFactory struct {
	Request  models.PositionRequest
	Interval int
	Account  *Account
	Token    *Token
	ATR      ATRSource

	// QuantityOverride - количество после пересчёта риска,
	// заменяет расчёт от stake
	QuantityOverride *float64
}

// PositionSize - stake% портфеля с учётом плеча, 6 знаков.
// Нулевое плечо считается за 1.
func PositionSize(portfolioValue, stake float64, leverage int) float64 {
	if leverage <= 0 {
		leverage = 1
	}
	return utils.RoundTo(portfolioValue*(stake/100)*float64(leverage), 6)
}

// Quantity - итоговое количество токенов для входа
func (f *PositionOrderFactory) Quantity() (float64, error) {
	prec := f.Token.QuantityPrecision()

	var qty float64
	if f.QuantityOverride != nil {
		// вниз, чтобы пересчитанный риск не превысил максимум
		qty = f.Token.FloorQuantity(*f.QuantityOverride)
	} else {
		size := PositionSize(f.Account.PortfolioValue(), f.Request.Stake, f.Request.Leverage)
		qty = f.Token.RoundQuantity(size / f.Token.Price())
	}

	if qty <= 0 {
		return 0, fmt.Errorf("%w: precision %d", ErrQuantityTooSmall, prec)
	}
	return qty, nil
}

// Create возвращает ордера входа в порядке исполнения
func (f *PositionOrderFactory) Create(ctx context.Context) ([]*models.Order, error) {
	qty, err := f.Quantity()
	if err != nil {
		return nil, err
	}

	ticker := f.Request.Ticker
	side := f.Request.Side
	price := f.Token.Price()

	if !f.Request.HasDCA() {
		order, err := models.NewPositionMarketOrder(ticker, side, qty, price)
		if err != nil {
			return nil, err
		}
		return []*models.Order{order}, nil
	}

	limits, err := f.dcaPrices(ctx)
	if err != nil {
		return nil, err
	}

	pcts := f.Request.DCAPercentages
	legs := f.Token.SplitQuantity(qty, pcts)
	orders := make([]*models.Order, 0, len(legs))
	for i, legQty := range legs {
		order, err := models.NewPositionDCAOrder(ticker, side, i+1, legQty, limits[i], price, pcts[i])
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// dcaPrices - лимитная цена каждой ноги: заданная явно или
// entry -/+ atr*multiplier (минус для BUY, плюс для SELL)
func (f *PositionOrderFactory) dcaPrices(ctx context.Context) ([]float64, error) {
	n := len(f.Request.DCAPercentages)
	prices := make([]float64, n)

	switch {
	case len(f.Request.DCATriggerPrices) > 0:
		if len(f.Request.DCATriggerPrices) < n {
			return nil, fmt.Errorf("%w: %d trigger prices for %d legs", ErrMissingDCATrigger, len(f.Request.DCATriggerPrices), n)
		}
		for i := range prices {
			prices[i] = f.Token.RoundPrice(f.Request.DCATriggerPrices[i])
		}

	case len(f.Request.DCAATRMultipliers) > 0:
		if len(f.Request.DCAATRMultipliers) < n {
			return nil, fmt.Errorf("%w: %d atr multipliers for %d legs", ErrMissingDCATrigger, len(f.Request.DCAATRMultipliers), n)
		}
		atr, err := f.ATR.Get(ctx, f.Request.Ticker, f.Interval)
		if err != nil {
			return nil, err
		}
		entry := f.Token.Price()
		for i := range prices {
			delta := atr * f.Request.DCAATRMultipliers[i]
			if f.Request.Side == models.SideBuy {
				prices[i] = f.Token.RoundPrice(entry - delta)
			} else {
				prices[i] = f.Token.RoundPrice(entry + delta)
			}
		}

	default:
		return nil, ErrMissingDCATrigger
	}

	return prices, nil
}
