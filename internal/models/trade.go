package models

import (
	"encoding/json"
	"time"
)

// TradeRecord - запись журнала сделок (таблица trades).
// Одна запись на каждый обработанный запрос /webhook, /exit, /order-update.
type TradeRecord struct {
	ID             string          `json:"id" db:"id"`
	UserID         string          `json:"user_id" db:"user_id"`
	Action         string          `json:"action" db:"action"`
	Exchange       string          `json:"exchange" db:"exchange"`
	Ticker         string          `json:"ticker" db:"ticker"`
	Side           string          `json:"side" db:"side"`
	Status         string          `json:"status" db:"status"`
	ErrorMessage   string          `json:"error_message,omitempty" db:"error_message"`
	IsTestPlatform bool            `json:"is_test_platform" db:"is_test_platform"`
	IsDryRun       bool            `json:"is_dry_run" db:"is_dry_run"`
	Summary        json.RawMessage `json:"summary,omitempty" db:"summary"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`

	Orders []TradeOrderRecord `json:"orders,omitempty" db:"-"`
}

// Действия
const (
	TradeActionEntry       = "entry"
	TradeActionExit        = "exit"
	TradeActionOrderUpdate = "order_update"
)

// Статусы
const (
	TradeStatusPlaced   = "placed"
	TradeStatusRejected = "rejected"
	TradeStatusSkipped  = "skipped"
)

// TradeOrderRecord - ордер, отправленный в рамках сделки (таблица trade_orders)
type TradeOrderRecord struct {
	ID           int64     `json:"id" db:"id"`
	TradeID      string    `json:"trade_id" db:"trade_id"`
	Seq          int       `json:"seq" db:"seq"`
	OrderID      string    `json:"order_id" db:"order_id"`
	Kind         string    `json:"kind" db:"kind"`
	Side         string    `json:"side" db:"side"`
	Type         string    `json:"type" db:"type"`
	Quantity     float64   `json:"quantity" db:"quantity"`
	TriggerPrice float64   `json:"trigger_price" db:"trigger_price"`
	LimitPrice   float64   `json:"limit_price" db:"limit_price"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// NewTradeOrderRecord переносит ордер в запись журнала
func NewTradeOrderRecord(seq int, o *Order) TradeOrderRecord {
	return TradeOrderRecord{
		Seq:          seq,
		OrderID:      o.ID,
		Kind:         string(o.Kind),
		Side:         string(o.Side),
		Type:         string(o.Type),
		Quantity:     o.Quantity,
		TriggerPrice: o.TriggerPrice,
		LimitPrice:   o.LimitPrice,
	}
}

// TradeFilter - параметры выборки журнала
type TradeFilter struct {
	UserID string
	Ticker string
	Limit  int
}
