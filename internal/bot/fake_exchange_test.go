package bot

import (
	"context"
	"fmt"
	"sync"

	"tradebot/internal/models"
)

// fakeExchange - биржа в памяти: Client + Markets с журналом вызовов
type fakeExchange struct {
	mu sync.Mutex

	price      float64
	qtyPrec    int32
	qtyStep    float64
	tick       float64
	portfolio  float64
	position   *models.Position
	openOrders []models.OpenOrder
	candles    []models.Candle

	leverageErr error
	marginErr   error
	placeErr    error
	failOnKind  models.OrderKind

	placed     []*models.Order
	cancelled  []string
	leverage   int
	marginType models.MarginType
	calls      []string
	ohlcvCalls int
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		price:     100,
		qtyPrec:   4,
		tick:      0.01,
		portfolio: 1000,
	}
}

func (f *fakeExchange) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeExchange) GetName() string { return "fake" }
func (f *fakeExchange) IsTestnet() bool { return true }

func (f *fakeExchange) PlaceOrder(_ context.Context, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("place:" + string(order.Kind))
	if f.placeErr != nil {
		return f.placeErr
	}
	if f.failOnKind != "" && order.Kind == f.failOnKind {
		return fmt.Errorf("rejected %s", order.Kind)
	}
	f.placed = append(f.placed, order)
	return nil
}

func (f *fakeExchange) GetQuantityPrecision(context.Context, string) (int32, error) {
	return f.qtyPrec, nil
}

func (f *fakeExchange) GetQuantityStep(context.Context, string) (float64, error) {
	return f.qtyStep, nil
}

func (f *fakeExchange) GetPricePrecision(context.Context, string) (float64, error) {
	return f.tick, nil
}

func (f *fakeExchange) UpdateLeverage(_ context.Context, _ string, leverage int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("leverage")
	if f.leverageErr != nil {
		return f.leverageErr
	}
	f.leverage = leverage
	return nil
}

func (f *fakeExchange) UpdateMarginType(_ context.Context, _ string, marginType models.MarginType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("margin")
	if f.marginErr != nil {
		return f.marginErr
	}
	f.marginType = marginType
	return nil
}

func (f *fakeExchange) GetPortfolioValue(context.Context) (float64, error) {
	return f.portfolio, nil
}

func (f *fakeExchange) GetPosition(context.Context, string) (*models.Position, error) {
	if f.position == nil {
		return nil, nil
	}
	pos := *f.position
	return &pos, nil
}

func (f *fakeExchange) GetOpenOrders(context.Context, string) ([]models.OpenOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.OpenOrder, len(f.openOrders))
	copy(out, f.openOrders)
	return out, nil
}

func (f *fakeExchange) CancelOrders(_ context.Context, _ string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("cancel")
	f.cancelled = append(f.cancelled, ids...)
	return nil
}

func (f *fakeExchange) FetchOHLCV(_ context.Context, _ string, timeframe string, limit int) ([]models.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ohlcvCalls++
	if timeframe == "" || limit <= 0 {
		return nil, fmt.Errorf("bad request %q %d", timeframe, limit)
	}
	return f.candles, nil
}

func (f *fakeExchange) GetCurrentPrice(context.Context, string) (float64, error) {
	return f.price, nil
}

// placedKinds - виды отправленных ордеров по порядку
func (f *fakeExchange) placedKinds() []models.OrderKind {
	kinds := make([]models.OrderKind, len(f.placed))
	for i, o := range f.placed {
		kinds[i] = o.Kind
	}
	return kinds
}

// growingATR удваивает значение при каждом обращении
type growingATR struct {
	value float64
	calls int
}

func (g *growingATR) Get(context.Context, string, int) (float64, error) {
	g.calls++
	v := g.value
	g.value *= 2
	return v, nil
}

func ptr(v float64) *float64 { return &v }
