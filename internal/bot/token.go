package bot

import (
	"context"
	"fmt"

	"tradebot/internal/exchange"
	"tradebot/pkg/utils"
)

// Token - параметры инструмента на время одного запроса:
// текущая цена, точность и шаг количества, шаг цены.
// Загружается один раз, дальше только читается.
type Token struct {
	ticker  string
	price   float64
	qtyPrec int32
	qtyStep float64
	tick    float64
}

// LoadToken запрашивает цену и точности у биржи
func LoadToken(ctx context.Context, client exchange.Client, markets exchange.Markets, ticker string) (*Token, error) {
	price, err := markets.GetCurrentPrice(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("get current price %s: %w", ticker, err)
	}
	qtyPrec, err := client.GetQuantityPrecision(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("get quantity precision %s: %w", ticker, err)
	}
	qtyStep, err := client.GetQuantityStep(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("get quantity step %s: %w", ticker, err)
	}
	tick, err := client.GetPricePrecision(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("get price precision %s: %w", ticker, err)
	}
	return NewToken(ticker, price, qtyPrec, tick).WithQuantityStep(qtyStep), nil
}

// NewToken собирает Token из известных значений
func NewToken(ticker string, price float64, qtyPrec int32, tick float64) *Token {
	return &Token{ticker: ticker, price: price, qtyPrec: qtyPrec, tick: tick}
}

// WithQuantityStep задаёт шаг лота. Ноль - шага нет, только точность.
func (t *Token) WithQuantityStep(step float64) *Token {
	t.qtyStep = step
	return t
}

func (t *Token) Ticker() string { return t.ticker }
func (t *Token) Price() float64 { return t.price }
func (t *Token) QuantityPrecision() int32 { return t.qtyPrec }
func (t *Token) QuantityStep() float64 { return t.qtyStep }
func (t *Token) Tick() float64 { return t.tick }

// PriceDecimals - число знаков цены, выведенное из шага
func (t *Token) PriceDecimals() int32 {
	return utils.DecimalPlaces(t.tick)
}

// RoundPrice привязывает цену к шагу инструмента.
// Без шага цена возвращается как есть.
func (t *Token) RoundPrice(price float64) float64 {
	return utils.RoundToTick(price, t.tick)
}

// RoundQuantity округляет количество до точности инструмента
// и опускает на кратное шагу лота
func (t *Token) RoundQuantity(qty float64) float64 {
	return t.snapQuantity(utils.RoundTo(qty, t.qtyPrec))
}

// FloorQuantity - то же, но всегда вниз
func (t *Token) FloorQuantity(qty float64) float64 {
	return t.snapQuantity(utils.FloorTo(qty, t.qtyPrec))
}

func (t *Token) snapQuantity(qty float64) float64 {
	if t.qtyStep <= 0 {
		return qty
	}
	// шорт приходит с минусом, шаг отсчитывается от модуля
	if qty < 0 {
		return -t.snapQuantity(-qty)
	}
	return utils.RoundTo(utils.RoundToLotSize(qty, t.qtyStep), t.qtyPrec)
}

// SplitQuantity делит total по процентам. Все части кроме последней
// лежат на шаге лота, последняя забирает остаток, так что при total
// кратном шагу кратны и все части.
func (t *Token) SplitQuantity(total float64, percentages []float64) []float64 {
	parts := utils.SplitByPercentages(total, percentages, t.qtyPrec)
	if t.qtyStep <= 0 || len(parts) == 0 {
		return parts
	}
	rest := total
	last := len(parts) - 1
	for i := 0; i < last; i++ {
		parts[i] = t.FloorQuantity(parts[i])
		rest -= parts[i]
	}
	parts[last] = utils.RoundTo(rest, t.qtyPrec)
	return parts
}

func (t *Token) String() string {
	return fmt.Sprintf("Token{%s price=%v qtyPrecision=%d qtyStep=%v tick=%v}", t.ticker, t.price, t.qtyPrec, t.qtyStep, t.tick)
}
