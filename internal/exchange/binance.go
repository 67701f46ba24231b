package exchange

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"

	"tradebot/internal/models"
	"tradebot/pkg/utils"
)

const (
	BinanceFuturesBaseURL        = "https://fapi.binance.com"
	BinanceFuturesTestnetBaseURL = "https://testnet.binancefuture.com"

	// -4046: "No need to change margin type"
	binanceMarginTypeUnchanged = -4046
)

// Binance реализует Exchange для USDⓈ-M фьючерсов через go-binance.
// Типы ордеров модели совпадают с типами Binance, поэтому перевод прямой.
type Binance struct {
	client  *futures.Client
	testnet bool
}

// NewBinance создает клиента фьючерсов. Адрес testnet задаётся на клиенте,
// а не глобальным futures.UseTestnet: в одном процессе живут обе сети.
func NewBinance(creds Credentials, testnet bool) *Binance {
	client := binance.NewFuturesClient(creds.APIKey, creds.SecretKey)
	client.BaseURL = BinanceFuturesBaseURL
	if testnet {
		client.BaseURL = BinanceFuturesTestnetBaseURL
	}
	client.HTTPClient = GetGlobalHTTPClient().GetClient()

	return &Binance{client: client, testnet: testnet}
}

// WithBaseURL переопределяет адрес API (тесты, прокси)
func (b *Binance) WithBaseURL(baseURL string) *Binance {
	b.client.BaseURL = strings.TrimRight(baseURL, "/")
	return b
}

func (b *Binance) GetName() string { return NameBinance }

func (b *Binance) IsTestnet() bool { return b.testnet }

func (b *Binance) key() string { return pacerKey(NameBinance, b.testnet) }

// wrapBinanceError переводит *common.APIError в ExchangeError с кодом
func wrapBinanceError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return &ExchangeError{
			Exchange: NameBinance,
			Code:     strconv.FormatInt(apiErr.Code, 10),
			Message:  apiErr.Message,
			Original: err,
		}
	}
	return &ExchangeError{Exchange: NameBinance, Message: err.Error(), Original: err}
}

func isBinanceCode(err error, code int64) bool {
	var apiErr *common.APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// ============================================================
// Ордера
// ============================================================

// PlaceOrder отправляет ордер; ID ордера уходит как newClientOrderId
func (b *Binance) PlaceOrder(ctx context.Context, order *models.Order) error {
	svc := b.client.NewCreateOrderService().
		Symbol(order.Ticker).
		Side(futures.SideType(order.Side)).
		Type(futures.OrderType(order.Type)).
		NewClientOrderID(order.ID)

	// closePosition несовместим с quantity и reduceOnly
	if order.ClosePosition {
		svc.ClosePosition(true)
	} else {
		if order.Quantity > 0 {
			svc.Quantity(formatFloat(order.Quantity))
		}
		if order.ReduceOnly {
			svc.ReduceOnly(true)
		}
	}
	if order.LimitPrice > 0 {
		svc.Price(formatFloat(order.LimitPrice))
	}
	if order.TriggerPrice > 0 {
		svc.StopPrice(formatFloat(order.TriggerPrice))
	}
	if order.TimeInForce != models.TimeInForceNone {
		svc.TimeInForce(futures.TimeInForceType(order.TimeInForce))
	}

	if err := waitTurn(ctx, b.key()); err != nil {
		return err
	}
	if _, err := svc.Do(ctx); err != nil {
		return fmt.Errorf("place order %s: %w", order.ID, wrapBinanceError(err))
	}
	return nil
}

// GetOpenOrders возвращает активные ордера по символу
func (b *Binance) GetOpenOrders(ctx context.Context, ticker string) ([]models.OpenOrder, error) {
	list, err := read(ctx, b.key(), func() ([]*futures.Order, error) {
		res, err := b.client.NewListOpenOrdersService().Symbol(ticker).Do(ctx)
		return res, wrapBinanceError(err)
	})
	if err != nil {
		return nil, fmt.Errorf("get open orders: %w", err)
	}

	orders := make([]models.OpenOrder, 0, len(list))
	for _, o := range list {
		orders = append(orders, models.OpenOrder{
			OrderID:       strconv.FormatInt(o.OrderID, 10),
			ClientOrderID: o.ClientOrderID,
			Ticker:        o.Symbol,
			Side:          models.Side(o.Side),
			Type:          models.OrderType(o.Type),
		})
	}
	return orders, nil
}

// CancelOrders отменяет ордера по одному
func (b *Binance) CancelOrders(ctx context.Context, ticker string, orderIDs []string) error {
	for _, id := range orderIDs {
		orderID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return fmt.Errorf("cancel order %s: invalid id: %w", id, err)
		}
		if err := waitTurn(ctx, b.key()); err != nil {
			return err
		}
		if _, err := b.client.NewCancelOrderService().Symbol(ticker).OrderID(orderID).Do(ctx); err != nil {
			return fmt.Errorf("cancel order %s: %w", id, wrapBinanceError(err))
		}
	}
	return nil
}

// ============================================================
// Позиция, плечо, маржа
// ============================================================

// GetPosition возвращает позицию с ненулевым объёмом или nil (режим one-way)
func (b *Binance) GetPosition(ctx context.Context, ticker string) (*models.Position, error) {
	list, err := read(ctx, b.key(), func() ([]*futures.PositionRisk, error) {
		res, err := b.client.NewGetPositionRiskService().Symbol(ticker).Do(ctx)
		return res, wrapBinanceError(err)
	})
	if err != nil {
		return nil, fmt.Errorf("get position: %w", err)
	}

	for _, p := range list {
		if !strings.EqualFold(p.Symbol, ticker) {
			continue
		}
		amount, _ := strconv.ParseFloat(p.PositionAmt, 64)
		if amount == 0 {
			continue
		}
		entry, _ := strconv.ParseFloat(p.EntryPrice, 64)
		return &models.Position{
			Ticker:     ticker,
			Amount:     amount,
			EntryPrice: entry,
			Side:       models.SideFromAmount(amount),
		}, nil
	}
	return nil, nil
}

func (b *Binance) UpdateLeverage(ctx context.Context, ticker string, leverage int) error {
	if err := waitTurn(ctx, b.key()); err != nil {
		return err
	}
	_, err := b.client.NewChangeLeverageService().Symbol(ticker).Leverage(leverage).Do(ctx)
	if err != nil {
		return fmt.Errorf("change leverage: %w", wrapBinanceError(err))
	}
	return nil
}

// UpdateMarginType; "маржа уже такая" (-4046) не считается ошибкой
func (b *Binance) UpdateMarginType(ctx context.Context, ticker string, marginType models.MarginType) error {
	mt := futures.MarginTypeIsolated
	if marginType == models.MarginCross {
		mt = futures.MarginTypeCrossed
	}

	if err := waitTurn(ctx, b.key()); err != nil {
		return err
	}
	err := b.client.NewChangeMarginTypeService().Symbol(ticker).MarginType(mt).Do(ctx)
	if err != nil && !isBinanceCode(err, binanceMarginTypeUnchanged) {
		return fmt.Errorf("change margin type: %w", wrapBinanceError(err))
	}
	return nil
}

// ============================================================
// Баланс и параметры инструмента
// ============================================================

// GetPortfolioValue - totalWalletBalance, округлённый до центов
func (b *Binance) GetPortfolioValue(ctx context.Context) (float64, error) {
	acc, err := read(ctx, b.key(), func() (*futures.Account, error) {
		res, err := b.client.NewGetAccountService().Do(ctx)
		return res, wrapBinanceError(err)
	})
	if err != nil {
		return 0, fmt.Errorf("get account: %w", err)
	}
	balance, err := strconv.ParseFloat(acc.TotalWalletBalance, 64)
	if err != nil {
		return 0, fmt.Errorf("parse wallet balance %q: %w", acc.TotalWalletBalance, err)
	}
	return utils.RoundTo(balance, 2), nil
}

// instrument читает exchangeInfo и кэширует все символы разом:
// эндпоинт отдаёт полный список независимо от запроса
func (b *Binance) instrument(ctx context.Context, ticker string) (symbolInfo, error) {
	prefix := b.key() + ":"
	if info, ok := instruments.get(prefix + ticker); ok {
		return info, nil
	}

	exInfo, err := read(ctx, b.key(), func() (*futures.ExchangeInfo, error) {
		res, err := b.client.NewExchangeInfoService().Do(ctx)
		return res, wrapBinanceError(err)
	})
	if err != nil {
		return symbolInfo{}, fmt.Errorf("get exchange info: %w", err)
	}

	var (
		found  symbolInfo
		exists bool
	)
	for _, s := range exInfo.Symbols {
		info := symbolInfo{QuantityPrecision: int32(s.QuantityPrecision)}
		for _, f := range s.Filters {
			if f["filterType"] == "LOT_SIZE" {
				if step, ok := f["stepSize"].(string); ok {
					info.QuantityStep, _ = strconv.ParseFloat(step, 64)
				}
			}
			if f["filterType"] == "PRICE_FILTER" {
				if tick, ok := f["tickSize"].(string); ok {
					info.TickSize, _ = strconv.ParseFloat(tick, 64)
				}
			}
		}
		instruments.put(prefix+s.Symbol, info)
		if s.Symbol == ticker {
			found, exists = info, true
		}
	}
	if !exists {
		return symbolInfo{}, fmt.Errorf("%w: %s", ErrSymbolNotFound, ticker)
	}
	return found, nil
}

func (b *Binance) GetQuantityPrecision(ctx context.Context, ticker string) (int32, error) {
	info, err := b.instrument(ctx, ticker)
	if err != nil {
		return 0, err
	}
	return info.QuantityPrecision, nil
}

// GetQuantityStep - stepSize из LOT_SIZE
func (b *Binance) GetQuantityStep(ctx context.Context, ticker string) (float64, error) {
	info, err := b.instrument(ctx, ticker)
	if err != nil {
		return 0, err
	}
	return info.QuantityStep, nil
}

// GetPricePrecision - tickSize из PRICE_FILTER
func (b *Binance) GetPricePrecision(ctx context.Context, ticker string) (float64, error) {
	info, err := b.instrument(ctx, ticker)
	if err != nil {
		return 0, err
	}
	return info.TickSize, nil
}

// ============================================================
// Рыночные данные
// ============================================================

func (b *Binance) GetCurrentPrice(ctx context.Context, ticker string) (float64, error) {
	prices, err := read(ctx, b.key(), func() ([]*futures.SymbolPrice, error) {
		res, err := b.client.NewListPricesService().Symbol(ticker).Do(ctx)
		return res, wrapBinanceError(err)
	})
	if err != nil {
		return 0, fmt.Errorf("get price: %w", err)
	}
	for _, p := range prices {
		if p.Symbol == ticker {
			return strconv.ParseFloat(p.Price, 64)
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrSymbolNotFound, ticker)
}

// FetchOHLCV - свечи от старых к новым, как их отдаёт Binance
func (b *Binance) FetchOHLCV(ctx context.Context, ticker, timeframe string, limit int) ([]models.Candle, error) {
	klines, err := read(ctx, b.key(), func() ([]*futures.Kline, error) {
		res, err := b.client.NewKlinesService().Symbol(ticker).Interval(timeframe).Limit(limit).Do(ctx)
		return res, wrapBinanceError(err)
	})
	if err != nil {
		return nil, fmt.Errorf("get klines: %w", err)
	}

	candles := make([]models.Candle, 0, len(klines))
	for _, k := range klines {
		candles = append(candles, models.Candle{
			OpenTime: time.UnixMilli(k.OpenTime).UTC(),
			Open:     parseFloat(k.Open),
			High:     parseFloat(k.High),
			Low:      parseFloat(k.Low),
			Close:    parseFloat(k.Close),
			Volume:   parseFloat(k.Volume),
		})
	}
	return candles, nil
}
