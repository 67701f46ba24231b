package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"tradebot/internal/models"
	"tradebot/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	BybitBaseURL        = "https://api.bybit.com"
	BybitTestnetBaseURL = "https://api-testnet.bybit.com"
	bybitRecvWindow     = "5000"
	bybitCategory       = "linear"
)

// Коды Bybit, означающие "значение уже установлено"
const (
	bybitLeverageNotModified   = 110043
	bybitMarginModeNotModified = 110026
)

// Bybit реализует Exchange для бессрочных USDT-контрактов Bybit (API v5)
type Bybit struct {
	apiKey    string
	secretKey string
	baseURL   string
	testnet   bool

	httpClient *http.Client

	// плечо, выставленное UpdateLeverage; нужно для смены режима маржи
	leverage int
}

// NewBybit создает клиента Bybit. baseURL выбирается по сети.
func NewBybit(creds Credentials, testnet bool) *Bybit {
	base := BybitBaseURL
	if testnet {
		base = BybitTestnetBaseURL
	}
	return &Bybit{
		apiKey:     creds.APIKey,
		secretKey:  creds.SecretKey,
		baseURL:    base,
		testnet:    testnet,
		httpClient: GetGlobalHTTPClient().GetClient(),
	}
}

// WithBaseURL переопределяет адрес API (тесты, прокси)
func (b *Bybit) WithBaseURL(baseURL string) *Bybit {
	b.baseURL = strings.TrimRight(baseURL, "/")
	return b
}

func (b *Bybit) GetName() string { return NameBybit }

func (b *Bybit) IsTestnet() bool { return b.testnet }

// sign создает подпись для запроса к Bybit API v5
func (b *Bybit) sign(timestamp string, params string) string {
	message := timestamp + b.apiKey + bybitRecvWindow + params
	h := hmac.New(sha256.New, []byte(b.secretKey))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// bybitResponse - общая обёртка ответов v5
type bybitResponse struct {
	RetCode int                 `json:"retCode"`
	RetMsg  string              `json:"retMsg"`
	Result  jsoniter.RawMessage `json:"result"`
}

// doRequest выполняет HTTP запрос к Bybit API и возвращает поле result.
// GET подписывает query string, POST - JSON тело.
func (b *Bybit) doRequest(ctx context.Context, method, endpoint string, params map[string]interface{}, signed bool) (jsoniter.RawMessage, error) {
	var payload string
	reqURL := b.baseURL + endpoint

	if method == http.MethodGet {
		query := url.Values{}
		for k, v := range params {
			query.Set(k, fmt.Sprint(v))
		}
		payload = query.Encode()
		if payload != "" {
			reqURL += "?" + payload
		}
	} else if len(params) > 0 {
		body, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		payload = string(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, strings.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	if signed {
		if b.apiKey == "" || b.secretKey == "" {
			return nil, &ExchangeError{Exchange: NameBybit, Message: "api key is not configured", Original: ErrMissingCredentials}
		}
		timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
		req.Header.Set("X-BAPI-API-KEY", b.apiKey)
		req.Header.Set("X-BAPI-SIGN", b.sign(timestamp, payload))
		req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
		req.Header.Set("X-BAPI-RECV-WINDOW", bybitRecvWindow)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, &ExchangeError{Exchange: NameBybit, Message: err.Error(), Original: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &ExchangeError{Exchange: NameBybit, Message: fmt.Sprintf("http %d", resp.StatusCode)}
	}

	var base bybitResponse
	if err := json.Unmarshal(raw, &base); err != nil {
		return nil, &ExchangeError{
			Exchange: NameBybit,
			Code:     strconv.Itoa(resp.StatusCode),
			Message:  "invalid response: " + truncate(string(raw), 200),
			Original: err,
		}
	}

	if base.RetCode != 0 {
		return nil, &ExchangeError{
			Exchange: NameBybit,
			Code:     strconv.Itoa(base.RetCode),
			Message:  base.RetMsg,
		}
	}

	return base.Result, nil
}

func (b *Bybit) key() string { return pacerKey(NameBybit, b.testnet) }

// ============================================================
// Ордера
// ============================================================

// PlaceOrder переводит ордер в /v5/order/create.
//
// Условные ордера (SL/TP) задаются triggerPrice + triggerDirection:
// 1 - срабатывает на росте цены, 2 - на падении.
func (b *Bybit) PlaceOrder(ctx context.Context, order *models.Order) error {
	params, err := bybitOrderParams(order)
	if err != nil {
		return err
	}
	if err := waitTurn(ctx, b.key()); err != nil {
		return err
	}
	_, err = b.doRequest(ctx, http.MethodPost, "/v5/order/create", params, true)
	if err != nil {
		return fmt.Errorf("place order %s: %w", order.ID, err)
	}
	return nil
}

func bybitOrderParams(order *models.Order) (map[string]interface{}, error) {
	params := map[string]interface{}{
		"category":    bybitCategory,
		"symbol":      order.Ticker,
		"side":        bybitSide(order.Side),
		"orderLinkId": order.ID,
	}

	if order.Quantity > 0 {
		params["qty"] = formatFloat(order.Quantity)
	}
	if order.ReduceOnly {
		params["reduceOnly"] = true
	}

	switch order.Type {
	case models.OrderTypeMarket:
		params["orderType"] = "Market"
	case models.OrderTypeLimit:
		params["orderType"] = "Limit"
		params["price"] = formatFloat(order.LimitPrice)
		params["timeInForce"] = "GTC"
	case models.OrderTypeStopMarket, models.OrderTypeTakeProfitMarket:
		params["orderType"] = "Market"
		params["triggerPrice"] = formatFloat(order.TriggerPrice)
		params["triggerDirection"] = bybitTriggerDirection(order)
		params["reduceOnly"] = true
	case models.OrderTypeStop, models.OrderTypeTakeProfit:
		params["orderType"] = "Limit"
		params["price"] = formatFloat(order.LimitPrice)
		params["triggerPrice"] = formatFloat(order.TriggerPrice)
		params["triggerDirection"] = bybitTriggerDirection(order)
		params["timeInForce"] = "GTC"
		params["reduceOnly"] = true
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOrder, order.Type)
	}

	// closePosition: qty=0 + closeOnTrigger закрывает позицию целиком
	if order.ClosePosition {
		params["qty"] = "0"
		params["reduceOnly"] = true
		params["closeOnTrigger"] = true
	}
	return params, nil
}

// bybitTriggerDirection: стоп на продажу (закрытие лонга) ждёт падения,
// тейк на продажу ждёт роста. Для покупки наоборот.
func bybitTriggerDirection(order *models.Order) int {
	rising := order.Side == models.SideBuy
	if order.Type == models.OrderTypeTakeProfit || order.Type == models.OrderTypeTakeProfitMarket {
		rising = !rising
	}
	if rising {
		return 1
	}
	return 2
}

func bybitSide(side models.Side) string {
	if side == models.SideSell {
		return "Sell"
	}
	return "Buy"
}

func fromBybitSide(side string) models.Side {
	if strings.EqualFold(side, "Sell") {
		return models.SideSell
	}
	return models.SideBuy
}

// GetOpenOrders возвращает активные ордера по символу
func (b *Bybit) GetOpenOrders(ctx context.Context, ticker string) ([]models.OpenOrder, error) {
	result, err := read(ctx, b.key(), func() (jsoniter.RawMessage, error) {
		return b.doRequest(ctx, http.MethodGet, "/v5/order/realtime", map[string]interface{}{
			"category": bybitCategory,
			"symbol":   ticker,
		}, true)
	})
	if err != nil {
		return nil, fmt.Errorf("get open orders: %w", err)
	}

	var data struct {
		List []struct {
			OrderID       string `json:"orderId"`
			OrderLinkID   string `json:"orderLinkId"`
			Symbol        string `json:"symbol"`
			Side          string `json:"side"`
			OrderType     string `json:"orderType"`
			StopOrderType string `json:"stopOrderType"`
		} `json:"list"`
	}
	if err := json.Unmarshal(result, &data); err != nil {
		return nil, fmt.Errorf("decode open orders: %w", err)
	}

	orders := make([]models.OpenOrder, 0, len(data.List))
	for _, o := range data.List {
		orders = append(orders, models.OpenOrder{
			OrderID:       o.OrderID,
			ClientOrderID: o.OrderLinkID,
			Ticker:        o.Symbol,
			Side:          fromBybitSide(o.Side),
			Type:          bybitOrderType(o.OrderType, o.StopOrderType, o.OrderLinkID),
		})
	}
	return orders, nil
}

// bybitOrderType приводит пару orderType/stopOrderType к типам фьючерсов Binance.
// Для условных ордеров ("Stop") вид определяется по тегу clientOrderId бота.
func bybitOrderType(orderType, stopOrderType, linkID string) models.OrderType {
	limit := strings.EqualFold(orderType, "Limit")

	kind := stopOrderType
	if kind == "Stop" {
		switch {
		case strings.HasPrefix(linkID, models.BotOrderPrefix+"tp"):
			kind = "TakeProfit"
		default:
			kind = "StopLoss"
		}
	}

	switch kind {
	case "":
		if limit {
			return models.OrderTypeLimit
		}
		return models.OrderTypeMarket
	case "TrailingStop":
		return models.OrderTypeTrailingStopMarket
	case "TakeProfit", "PartialTakeProfit":
		if limit {
			return models.OrderTypeTakeProfit
		}
		return models.OrderTypeTakeProfitMarket
	default:
		if limit {
			return models.OrderTypeStop
		}
		return models.OrderTypeStopMarket
	}
}

// CancelOrders отменяет ордера по одному: пакетная отмена v5 только для опционов
func (b *Bybit) CancelOrders(ctx context.Context, ticker string, orderIDs []string) error {
	for _, id := range orderIDs {
		if err := waitTurn(ctx, b.key()); err != nil {
			return err
		}
		_, err := b.doRequest(ctx, http.MethodPost, "/v5/order/cancel", map[string]interface{}{
			"category": bybitCategory,
			"symbol":   ticker,
			"orderId":  id,
		}, true)
		if err != nil {
			return fmt.Errorf("cancel order %s: %w", id, err)
		}
	}
	return nil
}

// ============================================================
// Позиция, плечо, маржа
// ============================================================

type bybitPosition struct {
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Size     string `json:"size"`
	AvgPrice string `json:"avgPrice"`
	Leverage string `json:"leverage"`
}

func (b *Bybit) positions(ctx context.Context, ticker string) ([]bybitPosition, error) {
	result, err := read(ctx, b.key(), func() (jsoniter.RawMessage, error) {
		return b.doRequest(ctx, http.MethodGet, "/v5/position/list", map[string]interface{}{
			"category": bybitCategory,
			"symbol":   ticker,
		}, true)
	})
	if err != nil {
		return nil, err
	}

	var data struct {
		List []bybitPosition `json:"list"`
	}
	if err := json.Unmarshal(result, &data); err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}
	return data.List, nil
}

// GetPosition возвращает позицию с ненулевым объёмом или nil.
// Bybit отдаёт размер без знака, знак восстанавливается по стороне.
func (b *Bybit) GetPosition(ctx context.Context, ticker string) (*models.Position, error) {
	list, err := b.positions(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("get position: %w", err)
	}

	for _, p := range list {
		if !strings.EqualFold(p.Symbol, ticker) {
			continue
		}
		size, _ := strconv.ParseFloat(p.Size, 64)
		if size == 0 {
			continue
		}
		entry, _ := strconv.ParseFloat(p.AvgPrice, 64)
		side := fromBybitSide(p.Side)
		amount := math.Abs(size)
		if side == models.SideSell {
			amount = -amount
		}
		return &models.Position{
			Ticker:     ticker,
			Amount:     amount,
			EntryPrice: entry,
			Side:       side,
		}, nil
	}
	return nil, nil
}

// UpdateLeverage выставляет одинаковое плечо для обеих сторон
func (b *Bybit) UpdateLeverage(ctx context.Context, ticker string, leverage int) error {
	if err := waitTurn(ctx, b.key()); err != nil {
		return err
	}
	lev := strconv.Itoa(leverage)
	_, err := b.doRequest(ctx, http.MethodPost, "/v5/position/set-leverage", map[string]interface{}{
		"category":     bybitCategory,
		"symbol":       ticker,
		"buyLeverage":  lev,
		"sellLeverage": lev,
	}, true)
	if err != nil && !isBybitCode(err, bybitLeverageNotModified) {
		return fmt.Errorf("set leverage: %w", err)
	}
	b.leverage = leverage
	return nil
}

// UpdateMarginType переключает cross/isolated. Bybit требует плечо в том же
// запросе: берётся выставленное ранее или текущее плечо позиции.
func (b *Bybit) UpdateMarginType(ctx context.Context, ticker string, marginType models.MarginType) error {
	leverage := b.leverage
	if leverage == 0 {
		list, err := b.positions(ctx, ticker)
		if err != nil {
			return fmt.Errorf("switch margin mode: %w", err)
		}
		for _, p := range list {
			if lv, err := strconv.ParseFloat(p.Leverage, 64); err == nil && lv > 0 {
				leverage = int(lv)
				break
			}
		}
		if leverage == 0 {
			leverage = 1
		}
	}

	tradeMode := 0
	if marginType == models.MarginIsolated {
		tradeMode = 1
	}

	if err := waitTurn(ctx, b.key()); err != nil {
		return err
	}
	lev := strconv.Itoa(leverage)
	_, err := b.doRequest(ctx, http.MethodPost, "/v5/position/switch-isolated", map[string]interface{}{
		"category":     bybitCategory,
		"symbol":       ticker,
		"tradeMode":    tradeMode,
		"buyLeverage":  lev,
		"sellLeverage": lev,
	}, true)
	if err != nil && !isBybitCode(err, bybitMarginModeNotModified) {
		return fmt.Errorf("switch margin mode: %w", err)
	}
	return nil
}

// ============================================================
// Баланс и параметры инструмента
// ============================================================

// GetPortfolioValue - equity USDT на едином торговом аккаунте
func (b *Bybit) GetPortfolioValue(ctx context.Context) (float64, error) {
	result, err := read(ctx, b.key(), func() (jsoniter.RawMessage, error) {
		return b.doRequest(ctx, http.MethodGet, "/v5/account/wallet-balance", map[string]interface{}{
			"accountType": "UNIFIED",
			"coin":        "USDT",
		}, true)
	})
	if err != nil {
		return 0, fmt.Errorf("get wallet balance: %w", err)
	}

	var data struct {
		List []struct {
			Coin []struct {
				Coin   string `json:"coin"`
				Equity string `json:"equity"`
			} `json:"coin"`
		} `json:"list"`
	}
	if err := json.Unmarshal(result, &data); err != nil {
		return 0, fmt.Errorf("decode wallet balance: %w", err)
	}

	for _, acc := range data.List {
		for _, c := range acc.Coin {
			if c.Coin == "USDT" {
				equity, _ := strconv.ParseFloat(c.Equity, 64)
				return utils.RoundTo(equity, 2), nil
			}
		}
	}
	return 0, nil
}

func (b *Bybit) instrument(ctx context.Context, ticker string) (symbolInfo, error) {
	cacheKey := b.key() + ":" + ticker
	if info, ok := instruments.get(cacheKey); ok {
		return info, nil
	}

	result, err := read(ctx, b.key(), func() (jsoniter.RawMessage, error) {
		return b.doRequest(ctx, http.MethodGet, "/v5/market/instruments-info", map[string]interface{}{
			"category": bybitCategory,
			"symbol":   ticker,
		}, false)
	})
	if err != nil {
		return symbolInfo{}, fmt.Errorf("get instrument info: %w", err)
	}

	var data struct {
		List []struct {
			Symbol      string `json:"symbol"`
			PriceFilter struct {
				TickSize string `json:"tickSize"`
			} `json:"priceFilter"`
			LotSizeFilter struct {
				QtyStep string `json:"qtyStep"`
			} `json:"lotSizeFilter"`
		} `json:"list"`
	}
	if err := json.Unmarshal(result, &data); err != nil {
		return symbolInfo{}, fmt.Errorf("decode instrument info: %w", err)
	}

	for _, s := range data.List {
		if s.Symbol != ticker {
			continue
		}
		tick, _ := strconv.ParseFloat(s.PriceFilter.TickSize, 64)
		step, _ := strconv.ParseFloat(s.LotSizeFilter.QtyStep, 64)
		info := symbolInfo{QuantityPrecision: utils.DecimalPlaces(step), QuantityStep: step, TickSize: tick}
		instruments.put(cacheKey, info)
		return info, nil
	}
	return symbolInfo{}, fmt.Errorf("%w: %s", ErrSymbolNotFound, ticker)
}

// GetQuantityPrecision - знаки после запятой шага количества (qtyStep)
func (b *Bybit) GetQuantityPrecision(ctx context.Context, ticker string) (int32, error) {
	info, err := b.instrument(ctx, ticker)
	if err != nil {
		return 0, err
	}
	return info.QuantityPrecision, nil
}

// GetQuantityStep - qtyStep как есть. Для шага 10 и крупнее точность
// равна нулю, кратность обеспечивает только шаг.
func (b *Bybit) GetQuantityStep(ctx context.Context, ticker string) (float64, error) {
	info, err := b.instrument(ctx, ticker)
	if err != nil {
		return 0, err
	}
	return info.QuantityStep, nil
}

// GetPricePrecision - шаг цены (tickSize)
func (b *Bybit) GetPricePrecision(ctx context.Context, ticker string) (float64, error) {
	info, err := b.instrument(ctx, ticker)
	if err != nil {
		return 0, err
	}
	return info.TickSize, nil
}

// ============================================================
// Рыночные данные
// ============================================================

// GetCurrentPrice - lastPrice из тикера
func (b *Bybit) GetCurrentPrice(ctx context.Context, ticker string) (float64, error) {
	result, err := read(ctx, b.key(), func() (jsoniter.RawMessage, error) {
		return b.doRequest(ctx, http.MethodGet, "/v5/market/tickers", map[string]interface{}{
			"category": bybitCategory,
			"symbol":   ticker,
		}, false)
	})
	if err != nil {
		return 0, fmt.Errorf("get ticker: %w", err)
	}

	var data struct {
		List []struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
		} `json:"list"`
	}
	if err := json.Unmarshal(result, &data); err != nil {
		return 0, fmt.Errorf("decode ticker: %w", err)
	}
	if len(data.List) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrSymbolNotFound, ticker)
	}
	return strconv.ParseFloat(data.List[0].LastPrice, 64)
}

// FetchOHLCV возвращает свечи от старых к новым (Bybit отдаёт новые первыми)
func (b *Bybit) FetchOHLCV(ctx context.Context, ticker, timeframe string, limit int) ([]models.Candle, error) {
	interval, err := ToBybitInterval(timeframe)
	if err != nil {
		return nil, err
	}

	result, err := read(ctx, b.key(), func() (jsoniter.RawMessage, error) {
		return b.doRequest(ctx, http.MethodGet, "/v5/market/kline", map[string]interface{}{
			"category": bybitCategory,
			"symbol":   ticker,
			"interval": interval,
			"limit":    limit,
		}, false)
	})
	if err != nil {
		return nil, fmt.Errorf("get klines: %w", err)
	}

	var data struct {
		List [][]string `json:"list"`
	}
	if err := json.Unmarshal(result, &data); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}

	candles := make([]models.Candle, 0, len(data.List))
	for i := len(data.List) - 1; i >= 0; i-- {
		row := data.List[i]
		if len(row) < 6 {
			return nil, fmt.Errorf("decode klines: short row %v", row)
		}
		start, _ := strconv.ParseInt(row[0], 10, 64)
		candles = append(candles, models.Candle{
			OpenTime: time.UnixMilli(start).UTC(),
			Open:     parseFloat(row[1]),
			High:     parseFloat(row[2]),
			Low:      parseFloat(row[3]),
			Close:    parseFloat(row[4]),
			Volume:   parseFloat(row[5]),
		})
	}
	return candles, nil
}

// ============================================================
// Helpers
// ============================================================

func isBybitCode(err error, code int) bool {
	var exErr *ExchangeError
	if !errors.As(err, &exErr) {
		return false
	}
	return exErr.Code == strconv.Itoa(code)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
