package bot

import (
	"context"
	"fmt"

	"tradebot/internal/exchange"
	"tradebot/internal/models"
	"tradebot/pkg/utils"
)

// LeverageUpdater выставляет плечо и режим маржи перед входом.
//
// Ошибка плеча прерывает запрос. Ошибка смены маржи только
// логируется: биржа отвечает ошибкой и когда режим уже выставлен.
type LeverageUpdater struct {
	Client     exchange.Client
	Ticker     string
	Leverage   int
	MarginType models.MarginType
}

func (u LeverageUpdater) Apply(ctx context.Context) error {
	log := utils.L().WithComponent("leverage").WithSymbol(u.Ticker)

	if u.Leverage > 0 {
		if err := u.Client.UpdateLeverage(ctx, u.Ticker, u.Leverage); err != nil {
			return fmt.Errorf("update leverage %s to %d: %w", u.Ticker, u.Leverage, err)
		}
		log.Info("leverage updated", utils.Int("leverage", u.Leverage))
	}

	if u.MarginType != "" {
		if err := u.Client.UpdateMarginType(ctx, u.Ticker, u.MarginType); err != nil {
			log.Warn("margin type not updated",
				utils.String("margin_type", string(u.MarginType)),
				utils.Err(err),
			)
			return nil
		}
		log.Info("margin type updated", utils.String("margin_type", string(u.MarginType)))
	}
	return nil
}
