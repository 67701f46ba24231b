package websocket

import (
	"time"

	"tradebot/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeWelcome - первое сообщение после подключения
	MessageTypeWelcome MessageType = "welcome"

	// MessageTypeTrade - обработан запрос /webhook, /exit или /order-update.
	// Отправляется только владельцу сделки.
	MessageTypeTrade MessageType = "trade"
)

// BaseMessage - базовая структура для всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// WelcomeMessage подтверждает подписку пользователя
type WelcomeMessage struct {
	BaseMessage
	UserID string `json:"user_id"`
}

// TradeMessage - запись журнала сделки.
//
// Data.Summary содержит тело ответа обработчика (TradeSummary, ExitSummary
// или OrderUpdateSummary) в том виде, в каком оно ушло клиенту по HTTP.
type TradeMessage struct {
	BaseMessage
	Data *models.TradeRecord `json:"data"`
}

// NewWelcomeMessage создает приветствие для подписчика
func NewWelcomeMessage(userID string) *WelcomeMessage {
	return &WelcomeMessage{
		BaseMessage: BaseMessage{Type: MessageTypeWelcome, Timestamp: time.Now()},
		UserID:      userID,
	}
}

// NewTradeMessage создает сообщение о сделке
func NewTradeMessage(trade *models.TradeRecord) *TradeMessage {
	return &TradeMessage{
		BaseMessage: BaseMessage{Type: MessageTypeTrade, Timestamp: time.Now()},
		Data:        trade,
	}
}
