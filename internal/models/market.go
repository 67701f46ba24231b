package models

import (
	"math"
	"time"
)

// Position - открытая позиция на бирже.
//
// Amount со знаком: > 0 лонг, < 0 шорт. Side заполняет адаптер биржи:
// Binance выводит её из знака, Bybit отдаёт явно.
type Position struct {
	Ticker     string  `json:"ticker"`
	Amount     float64 `json:"amount"`
	EntryPrice float64 `json:"entryPrice"`
	Side       Side    `json:"side"`
}

// IsOpen - позиция с ненулевым объёмом
func (p *Position) IsOpen() bool {
	return p != nil && p.Amount != 0
}

// AbsAmount - объём без знака
func (p *Position) AbsAmount() float64 {
	return math.Abs(p.Amount)
}

// OpenOrder - активный ордер на бирже
type OpenOrder struct {
	OrderID       string    `json:"orderId"`
	ClientOrderID string    `json:"clientOrderId"`
	Ticker        string    `json:"ticker"`
	Side          Side      `json:"side"`
	Type          OrderType `json:"type"`
}

// IsBot - ордер выставлен ботом
func (o OpenOrder) IsBot() bool {
	return IsBotOrderID(o.ClientOrderID)
}

// Candle - свеча OHLCV
type Candle struct {
	OpenTime time.Time `json:"openTime"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}
