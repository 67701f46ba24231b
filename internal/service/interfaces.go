package service

import (
	"context"

	"tradebot/internal/config"
	"tradebot/internal/exchange"
	"tradebot/internal/models"
)

// UserAuthenticator определяет проверку пользователя по userId и ключу auth
type UserAuthenticator interface {
	Authenticate(userID, auth string) (config.UserProfile, error)
}

// TradeJournalInterface определяет интерфейс журнала сделок
type TradeJournalInterface interface {
	Create(ctx context.Context, trade *models.TradeRecord) error
	GetByID(ctx context.Context, id string) (*models.TradeRecord, error)
	List(ctx context.Context, filter models.TradeFilter) ([]*models.TradeRecord, error)
}

// TradeBroadcaster - интерфейс для отправки сделок через WebSocket
type TradeBroadcaster interface {
	BroadcastTrade(trade *models.TradeRecord)
}

// ExchangeFactory создает адаптер биржи на один запрос
type ExchangeFactory func(name string, opts exchange.Options) (exchange.Exchange, error)
