package bot

import (
	"context"
	"fmt"

	"tradebot/internal/models"
)

// TakeProfitOrderFactory делит итоговое количество позиции
// на ноги тейк-профита
//
// Цена активации ноги:
// - из списка triggerPrices, если он задан
// - иначе entry + atr*m для BUY позиции (цены растут от ноги к ноге)
//   и entry - atr*m для SELL (цены падают)
//
// Лимитная нога выставляется, только если useLimitOrder и для её
// индекса есть limitOrderAtrMultiplier. Остальные ноги рыночные.
type TakeProfitOrderFactory struct {
	Request  models.TakeProfitRequest
	Ticker   string
	Side     models.Side // сторона позиции
	Interval int
	Quantity float64 // итоговое количество позиции после проверки риска
	Token    *Token
	ATR      ATRSource
}

func (f *TakeProfitOrderFactory) Create(ctx context.Context) ([]*models.Order, error) {
	splits := f.Request.Splits
	if len(splits) == 0 {
		return nil, nil
	}

	needATR := len(f.Request.TriggerPrices) == 0 || (f.Request.UseLimitOrder && len(f.Request.LimitOrderATRMultipliers) > 0)
	var atr float64
	if needATR {
		if len(f.Request.TriggerPrices) == 0 && len(f.Request.ATRMultipliers) == 0 {
			return nil, ErrMissingTrigger
		}
		var err error
		if atr, err = f.ATR.Get(ctx, f.Ticker, f.Interval); err != nil {
			return nil, err
		}
	}

	quantities := f.Token.SplitQuantity(f.Quantity, splits)
	exitSide := f.Side.Opposite()
	entry := f.Token.Price()

	orders := make([]*models.Order, 0, len(quantities))
	for i, qty := range quantities {
		trigger, err := f.triggerPrice(i, atr, entry)
		if err != nil {
			return nil, err
		}

		var order *models.Order
		if f.Request.UseLimitOrder && i < len(f.Request.LimitOrderATRMultipliers) {
			limit := f.away(entry, atr*f.Request.LimitOrderATRMultipliers[i])
			order, err = models.NewTakeProfitLimitOrder(f.Ticker, exitSide, i+1, qty, trigger, limit, splits[i])
		} else {
			order, err = models.NewTakeProfitMarketOrder(f.Ticker, exitSide, i+1, qty, trigger, splits[i])
		}
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (f *TakeProfitOrderFactory) triggerPrice(i int, atr, entry float64) (float64, error) {
	if prices := f.Request.TriggerPrices; len(prices) > 0 {
		if i >= len(prices) {
			return 0, fmt.Errorf("%w: no trigger price for take profit %d", ErrMissingTrigger, i+1)
		}
		return f.Token.RoundPrice(prices[i]), nil
	}

	mults := f.Request.ATRMultipliers
	if i >= len(mults) {
		return 0, fmt.Errorf("%w: no atr multiplier for take profit %d", ErrMissingTrigger, i+1)
	}
	delta := f.Token.RoundPrice(atr * mults[i])
	return f.away(entry, delta), nil
}

// away сдвигает цену в сторону прибыли позиции
func (f *TakeProfitOrderFactory) away(entry, delta float64) float64 {
	if f.Side == models.SideBuy {
		return f.Token.RoundPrice(entry + delta)
	}
	return f.Token.RoundPrice(entry - delta)
}
