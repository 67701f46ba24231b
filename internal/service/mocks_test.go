package service

import (
	"context"
	"sync"

	"tradebot/internal/exchange"
	"tradebot/internal/models"
	"tradebot/internal/repository"
)

// ============ Mock Exchange ============

type MockExchange struct {
	mu sync.Mutex

	name       string
	price      float64
	portfolio  float64
	position   *models.Position
	openOrders []models.OpenOrder
	placeErr   error
	failOnKind models.OrderKind

	placed    []*models.Order
	cancelled []string
}

func NewMockExchange(name string) *MockExchange {
	return &MockExchange{name: name, price: 100, portfolio: 1000}
}

func (m *MockExchange) GetName() string { return m.name }
func (m *MockExchange) IsTestnet() bool { return false }

func (m *MockExchange) PlaceOrder(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.placeErr != nil {
		return m.placeErr
	}
	if m.failOnKind != "" && order.Kind == m.failOnKind {
		return &exchange.ExchangeError{Exchange: m.name, Code: "10001", Message: "rejected " + string(order.Kind)}
	}
	m.placed = append(m.placed, order)
	return nil
}

func (m *MockExchange) GetQuantityPrecision(context.Context, string) (int32, error) {
	return 3, nil
}

func (m *MockExchange) GetQuantityStep(context.Context, string) (float64, error) {
	return 0.001, nil
}

func (m *MockExchange) GetPricePrecision(context.Context, string) (float64, error) {
	return 0.01, nil
}

func (m *MockExchange) UpdateLeverage(context.Context, string, int) error {
	return nil
}

func (m *MockExchange) UpdateMarginType(context.Context, string, models.MarginType) error {
	return nil
}

func (m *MockExchange) GetPortfolioValue(context.Context) (float64, error) {
	return m.portfolio, nil
}

func (m *MockExchange) GetPosition(context.Context, string) (*models.Position, error) {
	if m.position == nil {
		return nil, nil
	}
	pos := *m.position
	return &pos, nil
}

func (m *MockExchange) GetOpenOrders(context.Context, string) ([]models.OpenOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.OpenOrder(nil), m.openOrders...), nil
}

func (m *MockExchange) CancelOrders(_ context.Context, _ string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, ids...)
	return nil
}

func (m *MockExchange) FetchOHLCV(context.Context, string, string, int) ([]models.Candle, error) {
	return nil, nil
}

func (m *MockExchange) GetCurrentPrice(context.Context, string) (float64, error) {
	return m.price, nil
}

// ============ Mock ExchangeFactory ============

type MockExchangeFactory struct {
	exchange *MockExchange
	err      error

	calls []string
	opts  []exchange.Options
}

func (f *MockExchangeFactory) New(name string, opts exchange.Options) (exchange.Exchange, error) {
	f.calls = append(f.calls, name)
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	return f.exchange, nil
}

// ============ Mock TradeJournal ============

type MockTradeJournal struct {
	mu        sync.Mutex
	trades    []*models.TradeRecord
	createErr error
	listErr   error
}

func NewMockTradeJournal() *MockTradeJournal {
	return &MockTradeJournal{}
}

func (m *MockTradeJournal) Create(_ context.Context, trade *models.TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.trades = append(m.trades, trade)
	return nil
}

func (m *MockTradeJournal) GetByID(_ context.Context, id string) (*models.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.trades {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, repository.ErrTradeNotFound
}

func (m *MockTradeJournal) List(_ context.Context, filter models.TradeFilter) ([]*models.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []*models.TradeRecord
	for _, t := range m.trades {
		if filter.UserID != "" && t.UserID != filter.UserID {
			continue
		}
		if filter.Ticker != "" && t.Ticker != filter.Ticker {
			continue
		}
		result = append(result, t)
	}
	return result, nil
}

func (m *MockTradeJournal) last() *models.TradeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.trades) == 0 {
		return nil
	}
	return m.trades[len(m.trades)-1]
}

// ============ Mock Broadcaster ============

type MockBroadcaster struct {
	mu     sync.Mutex
	trades []*models.TradeRecord
}

func (m *MockBroadcaster) BroadcastTrade(trade *models.TradeRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, trade)
}
