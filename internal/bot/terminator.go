package bot

import (
	"context"
	"fmt"

	"tradebot/internal/exchange"
	"tradebot/internal/models"
)

// PositionTerminator строит ордер, закрывающий открытую позицию
type PositionTerminator struct {
	Client exchange.Client
}

// BuildCloseOrder возвращает рыночный reduce-only ордер на весь объём
// открытой позиции и саму позицию. Если позиции нет, оба значения nil.
func (t PositionTerminator) BuildCloseOrder(ctx context.Context, ticker string) (*models.Order, *models.Position, error) {
	pos, err := t.Client.GetPosition(ctx, ticker)
	if err != nil {
		return nil, nil, fmt.Errorf("get position %s: %w", ticker, err)
	}
	if !pos.IsOpen() {
		return nil, nil, nil
	}

	side := pos.Side
	if !side.Valid() {
		side = models.SideFromAmount(pos.Amount)
	}

	order, err := models.NewClosePositionOrder(ticker, side.Opposite(), pos.AbsAmount())
	if err != nil {
		return nil, nil, err
	}
	return order, pos, nil
}
