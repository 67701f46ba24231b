package bot

import (
	"context"

	"tradebot/internal/models"
)

// StopLossOrderFactory строит единственный STOP_MARKET ордер,
// закрывающий всю позицию
type StopLossOrderFactory struct {
	Request  models.StopLossRequest
	Ticker   string
	Side     models.Side // сторона позиции
	Interval int
	Token    *Token
	ATR      ATRSource
}

// TriggerPrice - заданная цена, иначе entry -/+ atr*multiplier
// (минус для лонга, плюс для шорта)
func (f *StopLossOrderFactory) TriggerPrice(ctx context.Context) (float64, error) {
	if f.Request.TriggerPrice != nil {
		return f.Token.RoundPrice(*f.Request.TriggerPrice), nil
	}
	if f.Request.ATRMultiplier == nil {
		return 0, ErrMissingTrigger
	}

	atr, err := f.ATR.Get(ctx, f.Ticker, f.Interval)
	if err != nil {
		return 0, err
	}
	entry := f.Token.Price()
	delta := atr * *f.Request.ATRMultiplier
	if f.Side == models.SideBuy {
		return f.Token.RoundPrice(entry - delta), nil
	}
	return f.Token.RoundPrice(entry + delta), nil
}

func (f *StopLossOrderFactory) Create(ctx context.Context) (*models.Order, error) {
	trigger, err := f.TriggerPrice(ctx)
	if err != nil {
		return nil, err
	}
	return models.NewStopLossOrder(f.Ticker, f.Side.Opposite(), trigger)
}
