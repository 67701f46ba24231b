package bot

import (
	"context"
	"fmt"

	"tradebot/internal/exchange"
)

// Account - снимок стоимости портфеля на момент решения
type Account struct {
	portfolioValue float64
}

// LoadAccount читает стоимость портфеля один раз за запрос
func LoadAccount(ctx context.Context, client exchange.Client) (*Account, error) {
	value, err := client.GetPortfolioValue(ctx)
	if err != nil {
		return nil, fmt.Errorf("get portfolio value: %w", err)
	}
	if value <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrEmptyPortfolio, value)
	}
	return NewAccount(value), nil
}

func NewAccount(portfolioValue float64) *Account {
	return &Account{portfolioValue: portfolioValue}
}

func (a *Account) PortfolioValue() float64 {
	return a.portfolioValue
}
