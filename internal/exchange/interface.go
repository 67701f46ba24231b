package exchange

import (
	"context"
	"errors"

	"tradebot/internal/models"
)

// Client определяет операции с фьючерсным аккаунтом пользователя.
// Реализации: Binance USDⓈ-M, Bybit v5 linear и обёртка DryRun.
type Client interface {
	// GetName возвращает имя биржи ("binance", "bybit")
	GetName() string

	// IsTestnet - клиент смотрит в тестовую сеть
	IsTestnet() bool

	// PlaceOrder отправляет ордер. ID ордера уходит как clientOrderId.
	PlaceOrder(ctx context.Context, order *models.Order) error

	// GetQuantityPrecision - число знаков после запятой для количества
	GetQuantityPrecision(ctx context.Context, ticker string) (int32, error)

	// GetQuantityStep - шаг лота; 0 если биржа его не сообщила
	GetQuantityStep(ctx context.Context, ticker string) (float64, error)

	// GetPricePrecision - шаг цены (tick size), не число знаков
	GetPricePrecision(ctx context.Context, ticker string) (float64, error)

	UpdateLeverage(ctx context.Context, ticker string, leverage int) error
	UpdateMarginType(ctx context.Context, ticker string, marginType models.MarginType) error

	// GetPortfolioValue - баланс кошелька в USDT
	GetPortfolioValue(ctx context.Context) (float64, error)

	// GetPosition возвращает открытую позицию или nil, если позиции нет
	GetPosition(ctx context.Context, ticker string) (*models.Position, error)

	GetOpenOrders(ctx context.Context, ticker string) ([]models.OpenOrder, error)

	// CancelOrders отменяет ордера по биржевым идентификаторам
	CancelOrders(ctx context.Context, ticker string, orderIDs []string) error
}

// Markets - рыночные данные
type Markets interface {
	// FetchOHLCV возвращает свечи от старых к новым; последняя может быть незакрытой
	FetchOHLCV(ctx context.Context, ticker, timeframe string, limit int) ([]models.Candle, error)

	GetCurrentPrice(ctx context.Context, ticker string) (float64, error)
}

// Exchange - адаптер биржи целиком: аккаунт и рыночные данные
type Exchange interface {
	Client
	Markets
}

// Credentials - ключи API одной сети (mainnet или testnet)
type Credentials struct {
	APIKey    string
	SecretKey string
}

// Имена бирж
const (
	NameBinance = "binance"
	NameBybit   = "bybit"
)

var (
	ErrSymbolNotFound     = errors.New("symbol not found")
	ErrUnsupportedOrder   = errors.New("unsupported order type")
	ErrMissingCredentials = errors.New("missing api credentials")
)

// ExchangeError представляет ошибку от биржи
type ExchangeError struct {
	Exchange string
	Code     string
	Message  string
	Original error
}

func (e *ExchangeError) Error() string {
	if e.Code != "" {
		return e.Exchange + ": [" + e.Code + "] " + e.Message
	}
	return e.Exchange + ": " + e.Message
}

// Unwrap возвращает оригинальную ошибку для поддержки errors.Is() и errors.As()
func (e *ExchangeError) Unwrap() error {
	return e.Original
}

// Retryable - ответ биржи с кодом ошибки повторять бессмысленно,
// сетевые ошибки без кода можно повторить
func (e *ExchangeError) Retryable() bool {
	return e.Code == ""
}
