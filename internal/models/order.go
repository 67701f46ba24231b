package models

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
)

// ============================================================
// Сторона, тип ордера, time-in-force
// ============================================================

// Side - сторона ордера или позиции
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite возвращает противоположную сторону
func (s Side) Opposite() Side {
	if s == SideSell {
		return SideBuy
	}
	return SideSell
}

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// ParseSide разбирает сторону без учёта регистра
func ParseSide(s string) (Side, error) {
	side := Side(strings.ToUpper(strings.TrimSpace(s)))
	if !side.Valid() {
		return "", fmt.Errorf("invalid side %q: must be BUY or SELL", s)
	}
	return side, nil
}

// SideFromAmount - сторона позиции по знаку количества
func SideFromAmount(amount float64) Side {
	if amount > 0 {
		return SideBuy
	}
	return SideSell
}

// OrderType - тип ордера в терминах USDⓈ-M фьючерсов
type OrderType string

const (
	OrderTypeMarket             OrderType = "MARKET"
	OrderTypeLimit              OrderType = "LIMIT"
	OrderTypeStop               OrderType = "STOP"
	OrderTypeStopMarket         OrderType = "STOP_MARKET"
	OrderTypeTakeProfit         OrderType = "TAKE_PROFIT"
	OrderTypeTakeProfitMarket   OrderType = "TAKE_PROFIT_MARKET"
	OrderTypeTrailingStopMarket OrderType = "TRAILING_STOP_MARKET"
)

// IsStop - стоп-лосс любого вида
func (t OrderType) IsStop() bool {
	return t == OrderTypeStop || t == OrderTypeStopMarket
}

// IsExit - ордер выхода (SL, TP, трейлинг), а не вход
func (t OrderType) IsExit() bool {
	return t != OrderTypeLimit && t != OrderTypeMarket
}

// TimeInForce - пусто для рыночных и условных ордеров
type TimeInForce string

const (
	TimeInForceNone TimeInForce = ""
	TimeInForceGTC  TimeInForce = "GTC"
)

// MarginType - режим маржи
type MarginType string

const (
	MarginIsolated MarginType = "ISOLATED"
	MarginCross    MarginType = "CROSS"
)

// ============================================================
// Order
// ============================================================

// OrderKind - вариант ордера
type OrderKind string

const (
	KindPositionMarket   OrderKind = "position_market"
	KindPositionDCA      OrderKind = "position_dca"
	KindStopLoss         OrderKind = "stop_loss"
	KindTakeProfitMarket OrderKind = "take_profit_market"
	KindTakeProfitLimit  OrderKind = "take_profit_limit"
	KindClosePosition    OrderKind = "close_position"
)

// Order - неизменяемое описание ордера для биржи.
//
// Поля, не имеющие смысла для варианта, остаются нулевыми:
// у стоп-лосса нет Quantity (закрывает всю позицию), у рыночного
// входа нет TriggerPrice. Ордера создаются только конструкторами ниже.
type Order struct {
	ID            string      `json:"id"`
	Kind          OrderKind   `json:"kind"`
	Ticker        string      `json:"ticker"`
	Side          Side        `json:"side"`
	Type          OrderType   `json:"type"`
	Quantity      float64     `json:"quantity,omitempty"`
	TriggerPrice  float64     `json:"triggerPrice,omitempty"`
	LimitPrice    float64     `json:"limitPrice,omitempty"`
	ReduceOnly    bool        `json:"reduceOnly"`
	ClosePosition bool        `json:"closePosition"`
	TimeInForce   TimeInForce `json:"timeInForce,omitempty"`

	// Только для входов
	CurrentPrice  float64 `json:"currentPrice,omitempty"`
	EntryPrice    float64 `json:"entryPrice,omitempty"`
	DCAPercentage float64 `json:"dcaPercentage,omitempty"`

	// Только для тейк-профитов
	ExitPercentage float64 `json:"exitPercentage,omitempty"`
}

// IsPosition - ордер входа (рыночный или DCA)
func (o *Order) IsPosition() bool {
	return o.Kind == KindPositionMarket || o.Kind == KindPositionDCA
}

func (o *Order) IsTakeProfit() bool {
	return o.Kind == KindTakeProfitMarket || o.Kind == KindTakeProfitLimit
}

// IsSameSide сравнивает стороны двух ордеров
func (o *Order) IsSameSide(other *Order) bool {
	return o.Side == other.Side
}

func (o *Order) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s %s", o.Kind, o.Side, o.Type, o.Ticker)
	if o.Quantity > 0 {
		fmt.Fprintf(&b, " qty=%v", o.Quantity)
	}
	if o.TriggerPrice > 0 {
		fmt.Fprintf(&b, " trigger=%v", o.TriggerPrice)
	}
	if o.LimitPrice > 0 {
		fmt.Fprintf(&b, " limit=%v", o.LimitPrice)
	}
	fmt.Fprintf(&b, " id=%s", o.ID)
	return b.String()
}

// NewPositionMarketOrder - рыночный вход по текущей цене
func NewPositionMarketOrder(ticker string, side Side, qty, currentPrice float64) (*Order, error) {
	id, err := GenerateOrderID("pos")
	if err != nil {
		return nil, err
	}
	return &Order{
		ID:           id,
		Kind:         KindPositionMarket,
		Ticker:       ticker,
		Side:         side,
		Type:         OrderTypeMarket,
		Quantity:     qty,
		CurrentPrice: currentPrice,
		EntryPrice:   currentPrice,
	}, nil
}

// NewPositionDCAOrder - лимитная нога DCA. leg нумеруется с 1.
func NewPositionDCAOrder(ticker string, side Side, leg int, qty, limitPrice, currentPrice, pct float64) (*Order, error) {
	id, err := GenerateOrderID(fmt.Sprintf("dca%d", leg))
	if err != nil {
		return nil, err
	}
	return &Order{
		ID:            id,
		Kind:          KindPositionDCA,
		Ticker:        ticker,
		Side:          side,
		Type:          OrderTypeLimit,
		Quantity:      qty,
		LimitPrice:    limitPrice,
		TimeInForce:   TimeInForceGTC,
		CurrentPrice:  currentPrice,
		EntryPrice:    limitPrice,
		DCAPercentage: pct,
	}, nil
}

// NewStopLossOrder - STOP_MARKET, закрывающий всю позицию.
// side - сторона самого ордера (противоположная позиции).
func NewStopLossOrder(ticker string, side Side, trigger float64) (*Order, error) {
	id, err := GenerateOrderID("sl")
	if err != nil {
		return nil, err
	}
	return &Order{
		ID:            id,
		Kind:          KindStopLoss,
		Ticker:        ticker,
		Side:          side,
		Type:          OrderTypeStopMarket,
		TriggerPrice:  trigger,
		ClosePosition: true,
	}, nil
}

// NewTakeProfitMarketOrder - рыночный тейк-профит. leg нумеруется с 1.
func NewTakeProfitMarketOrder(ticker string, side Side, leg int, qty, trigger, pct float64) (*Order, error) {
	id, err := GenerateOrderID(fmt.Sprintf("tp%d", leg))
	if err != nil {
		return nil, err
	}
	return &Order{
		ID:             id,
		Kind:           KindTakeProfitMarket,
		Ticker:         ticker,
		Side:           side,
		Type:           OrderTypeTakeProfitMarket,
		Quantity:       qty,
		TriggerPrice:   trigger,
		ReduceOnly:     true,
		ExitPercentage: pct,
	}, nil
}

// NewTakeProfitLimitOrder - лимитный тейк-профит с ценой активации
func NewTakeProfitLimitOrder(ticker string, side Side, leg int, qty, trigger, limit, pct float64) (*Order, error) {
	id, err := GenerateOrderID(fmt.Sprintf("tp%d", leg))
	if err != nil {
		return nil, err
	}
	return &Order{
		ID:             id,
		Kind:           KindTakeProfitLimit,
		Ticker:         ticker,
		Side:           side,
		Type:           OrderTypeTakeProfit,
		Quantity:       qty,
		TriggerPrice:   trigger,
		LimitPrice:     limit,
		ReduceOnly:     true,
		TimeInForce:    TimeInForceGTC,
		ExitPercentage: pct,
	}, nil
}

// NewClosePositionOrder - рыночный reduce-only ордер на весь объём открытой позиции
func NewClosePositionOrder(ticker string, side Side, qty float64) (*Order, error) {
	id, err := GenerateOrderID("exit")
	if err != nil {
		return nil, err
	}
	return &Order{
		ID:         id,
		Kind:       KindClosePosition,
		Ticker:     ticker,
		Side:       side,
		Type:       OrderTypeMarket,
		Quantity:   qty,
		ReduceOnly: true,
	}, nil
}

// ============================================================
// Идентификаторы ордеров
// ============================================================

// BotOrderPrefix отличает ордера бота от ручных
const BotOrderPrefix = "bot_"

// MaxOrderIDLength - ограничение clientOrderId у Binance
const MaxOrderIDLength = 36

const orderIDRandomLen = 8

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

var ErrOrderIDTooLong = errors.New("order id must be at most 36 characters")

// GenerateOrderID возвращает bot_<tag>_<8 букв> (или bot_<8 букв> без тега)
func GenerateOrderID(tag string) (string, error) {
	suffix := make([]byte, orderIDRandomLen)
	for i := range suffix {
		suffix[i] = letters[rand.Intn(len(letters))]
	}

	id := BotOrderPrefix
	if tag != "" {
		id += tag + "_"
	}
	id += string(suffix)

	if len(id) > MaxOrderIDLength {
		return "", fmt.Errorf("%w: %q", ErrOrderIDTooLong, id)
	}
	return id, nil
}

// IsBotOrderID сообщает, выставлен ли ордер ботом
func IsBotOrderID(id string) bool {
	return strings.HasPrefix(id, BotOrderPrefix)
}
