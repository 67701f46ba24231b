package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tradebot/internal/models"
)

// bybitStub - тестовый сервер v5: path -> result (JSON)
func bybitStub(t *testing.T, routes map[string]string, captured map[string]string) *httptest.Server {
	t.Helper()
	instruments = newSymbolCache(time.Minute)

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			body, _ := io.ReadAll(r.Body)
			if r.Method == http.MethodGet {
				captured[r.URL.Path] = r.URL.RawQuery
			} else {
				captured[r.URL.Path] = string(body)
			}
		}
		result, ok := routes[r.URL.Path]
		if !ok {
			w.Write([]byte(`{"retCode":10001,"retMsg":"unknown path"}`))
			return
		}
		if len(result) > 0 && result[0] == '!' {
			w.Write([]byte(result[1:]))
			return
		}
		w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":` + result + `}`))
	}))
}

func newTestBybit(url string) *Bybit {
	return NewBybit(Credentials{APIKey: "key", SecretKey: "secret"}, true).WithBaseURL(url)
}

func TestBybit_Sign(t *testing.T) {
	b := NewBybit(Credentials{APIKey: "key", SecretKey: "secret"}, false)

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte("1700000000000" + "key" + bybitRecvWindow + "category=linear&symbol=BTCUSDT"))
	want := hex.EncodeToString(mac.Sum(nil))

	if got := b.sign("1700000000000", "category=linear&symbol=BTCUSDT"); got != want {
		t.Errorf("sign = %s, want %s", got, want)
	}
}

func TestBybit_SignedHeaders(t *testing.T) {
	var headers http.Header
	var rawQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		rawQuery = r.URL.RawQuery
		w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[]}}`))
	}))
	defer srv.Close()

	b := newTestBybit(srv.URL)
	if _, err := b.GetOpenOrders(context.Background(), "BTCUSDT"); err != nil {
		t.Fatalf("GetOpenOrders: %v", err)
	}

	if headers.Get("X-BAPI-API-KEY") != "key" {
		t.Errorf("api key header = %q", headers.Get("X-BAPI-API-KEY"))
	}
	ts := headers.Get("X-BAPI-TIMESTAMP")
	if want := b.sign(ts, rawQuery); headers.Get("X-BAPI-SIGN") != want {
		t.Errorf("signature mismatch for query %q", rawQuery)
	}
}

func TestBybit_MissingCredentials(t *testing.T) {
	b := NewBybit(Credentials{}, true).WithBaseURL("http://127.0.0.1:1")
	err := b.PlaceOrder(context.Background(), &models.Order{ID: "bot_pos_x", Ticker: "BTCUSDT", Side: models.SideBuy, Type: models.OrderTypeMarket, Quantity: 1})
	if !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestBybit_RetCodeError(t *testing.T) {
	srv := bybitStub(t, map[string]string{
		"/v5/order/create": `!{"retCode":110007,"retMsg":"ab not enough for new order"}`,
	}, nil)
	defer srv.Close()

	b := newTestBybit(srv.URL)
	err := b.PlaceOrder(context.Background(), &models.Order{ID: "bot_pos_x", Ticker: "BTCUSDT", Side: models.SideBuy, Type: models.OrderTypeMarket, Quantity: 1})

	var exErr *ExchangeError
	if !errors.As(err, &exErr) {
		t.Fatalf("expected ExchangeError, got %v", err)
	}
	if exErr.Code != "110007" || exErr.Exchange != NameBybit {
		t.Errorf("unexpected error: %+v", exErr)
	}
	if exErr.Retryable() {
		t.Error("error with retCode must not be retryable")
	}
}

func TestBybitOrderParams(t *testing.T) {
	tests := []struct {
		name  string
		order *models.Order
		want  map[string]interface{}
	}{
		{
			name:  "market entry",
			order: &models.Order{ID: "bot_pos_a", Ticker: "BTCUSDT", Side: models.SideBuy, Type: models.OrderTypeMarket, Quantity: 0.5},
			want:  map[string]interface{}{"orderType": "Market", "side": "Buy", "qty": "0.5"},
		},
		{
			name:  "dca limit",
			order: &models.Order{ID: "bot_dca1_a", Ticker: "BTCUSDT", Side: models.SideSell, Type: models.OrderTypeLimit, Quantity: 1, LimitPrice: 101.5, TimeInForce: models.TimeInForceGTC},
			want:  map[string]interface{}{"orderType": "Limit", "side": "Sell", "price": "101.5", "timeInForce": "GTC"},
		},
		{
			name:  "stop loss closes position",
			order: &models.Order{ID: "bot_sl_a", Ticker: "BTCUSDT", Side: models.SideSell, Type: models.OrderTypeStopMarket, TriggerPrice: 95, ClosePosition: true},
			want:  map[string]interface{}{"orderType": "Market", "triggerPrice": "95", "triggerDirection": 2, "qty": "0", "closeOnTrigger": true, "reduceOnly": true},
		},
		{
			name:  "short stop loss rises",
			order: &models.Order{ID: "bot_sl_a", Ticker: "BTCUSDT", Side: models.SideBuy, Type: models.OrderTypeStopMarket, TriggerPrice: 105, ClosePosition: true},
			want:  map[string]interface{}{"triggerDirection": 1},
		},
		{
			name:  "take profit market",
			order: &models.Order{ID: "bot_tp1_a", Ticker: "BTCUSDT", Side: models.SideSell, Type: models.OrderTypeTakeProfitMarket, Quantity: 2, TriggerPrice: 110, ReduceOnly: true},
			want:  map[string]interface{}{"orderType": "Market", "triggerDirection": 1, "qty": "2", "reduceOnly": true},
		},
		{
			name:  "take profit limit",
			order: &models.Order{ID: "bot_tp1_a", Ticker: "BTCUSDT", Side: models.SideBuy, Type: models.OrderTypeTakeProfit, Quantity: 2, TriggerPrice: 90, LimitPrice: 89.5, ReduceOnly: true},
			want:  map[string]interface{}{"orderType": "Limit", "price": "89.5", "triggerPrice": "90", "triggerDirection": 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, err := bybitOrderParams(tt.order)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if params["orderLinkId"] != tt.order.ID {
				t.Errorf("orderLinkId = %v, want %s", params["orderLinkId"], tt.order.ID)
			}
			for k, v := range tt.want {
				if params[k] != v {
					t.Errorf("%s = %v, want %v", k, params[k], v)
				}
			}
		})
	}

	if _, err := bybitOrderParams(&models.Order{Type: models.OrderTypeTrailingStopMarket}); !errors.Is(err, ErrUnsupportedOrder) {
		t.Errorf("expected ErrUnsupportedOrder, got %v", err)
	}
}

func TestBybit_GetPosition(t *testing.T) {
	tests := []struct {
		name       string
		result     string
		wantNil    bool
		wantAmount float64
		wantSide   models.Side
	}{
		{"flat", `{"list":[{"symbol":"BTCUSDT","side":"","size":"0","avgPrice":"0"}]}`, true, 0, ""},
		{"long", `{"list":[{"symbol":"BTCUSDT","side":"Buy","size":"0.25","avgPrice":"100.5"}]}`, false, 0.25, models.SideBuy},
		{"short", `{"list":[{"symbol":"BTCUSDT","side":"Sell","size":"3","avgPrice":"99"}]}`, false, -3, models.SideSell},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := bybitStub(t, map[string]string{"/v5/position/list": tt.result}, nil)
			defer srv.Close()

			pos, err := newTestBybit(srv.URL).GetPosition(context.Background(), "BTCUSDT")
			if err != nil {
				t.Fatalf("GetPosition: %v", err)
			}
			if tt.wantNil {
				if pos != nil {
					t.Errorf("expected nil position, got %+v", pos)
				}
				return
			}
			if pos.Amount != tt.wantAmount || pos.Side != tt.wantSide {
				t.Errorf("got amount=%v side=%s, want %v %s", pos.Amount, pos.Side, tt.wantAmount, tt.wantSide)
			}
		})
	}
}

func TestBybit_GetOpenOrders(t *testing.T) {
	srv := bybitStub(t, map[string]string{
		"/v5/order/realtime": `{"list":[
			{"orderId":"1","orderLinkId":"bot_sl_abcdefgh","symbol":"BTCUSDT","side":"Sell","orderType":"Market","stopOrderType":"Stop"},
			{"orderId":"2","orderLinkId":"bot_tp1_abcdefgh","symbol":"BTCUSDT","side":"Sell","orderType":"Market","stopOrderType":"Stop"},
			{"orderId":"3","orderLinkId":"manual","symbol":"BTCUSDT","side":"Sell","orderType":"Market","stopOrderType":"TrailingStop"},
			{"orderId":"4","orderLinkId":"bot_dca1_abcdefgh","symbol":"BTCUSDT","side":"Buy","orderType":"Limit","stopOrderType":""}
		]}`,
	}, nil)
	defer srv.Close()

	orders, err := newTestBybit(srv.URL).GetOpenOrders(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("GetOpenOrders: %v", err)
	}

	want := []models.OrderType{
		models.OrderTypeStopMarket,
		models.OrderTypeTakeProfitMarket,
		models.OrderTypeTrailingStopMarket,
		models.OrderTypeLimit,
	}
	if len(orders) != len(want) {
		t.Fatalf("expected %d orders, got %d", len(want), len(orders))
	}
	for i, o := range orders {
		if o.Type != want[i] {
			t.Errorf("order %d type = %s, want %s", i, o.Type, want[i])
		}
	}
	if !orders[0].IsBot() || orders[2].IsBot() {
		t.Error("bot order detection is wrong")
	}
}

func TestBybit_Instrument(t *testing.T) {
	srv := bybitStub(t, map[string]string{
		"/v5/market/instruments-info": `{"list":[{"symbol":"ETHUSDT","priceFilter":{"tickSize":"0.01"},"lotSizeFilter":{"qtyStep":"0.001"}}]}`,
	}, nil)
	defer srv.Close()

	b := newTestBybit(srv.URL)
	prec, err := b.GetQuantityPrecision(context.Background(), "ETHUSDT")
	if err != nil || prec != 3 {
		t.Errorf("GetQuantityPrecision = %d, %v; want 3", prec, err)
	}
	tick, err := b.GetPricePrecision(context.Background(), "ETHUSDT")
	if err != nil || tick != 0.01 {
		t.Errorf("GetPricePrecision = %v, %v; want 0.01", tick, err)
	}

	if _, err := b.GetPricePrecision(context.Background(), "XRPUSDT"); !errors.Is(err, ErrSymbolNotFound) {
		t.Errorf("expected ErrSymbolNotFound, got %v", err)
	}
}

func TestBybit_InstrumentCoarseLotStep(t *testing.T) {
	srv := bybitStub(t, map[string]string{
		"/v5/market/instruments-info": `{"list":[{"symbol":"SHIB1000USDT","priceFilter":{"tickSize":"0.000001"},"lotSizeFilter":{"qtyStep":"100"}}]}`,
	}, nil)
	defer srv.Close()

	b := newTestBybit(srv.URL)
	prec, err := b.GetQuantityPrecision(context.Background(), "SHIB1000USDT")
	if err != nil || prec != 0 {
		t.Errorf("GetQuantityPrecision = %d, %v; want 0", prec, err)
	}
	step, err := b.GetQuantityStep(context.Background(), "SHIB1000USDT")
	if err != nil || step != 100 {
		t.Errorf("GetQuantityStep = %v, %v; want 100", step, err)
	}
}

func TestBybit_FetchOHLCV(t *testing.T) {
	captured := map[string]string{}
	srv := bybitStub(t, map[string]string{
		"/v5/market/kline": `{"list":[
			["1700000120000","12","14","11","13","5","0"],
			["1700000060000","11","13","10","12","5","0"],
			["1700000000000","10","12","9","11","5","0"]
		]}`,
	}, captured)
	defer srv.Close()

	candles, err := newTestBybit(srv.URL).FetchOHLCV(context.Background(), "BTCUSDT", "1h", 3)
	if err != nil {
		t.Fatalf("FetchOHLCV: %v", err)
	}
	if len(candles) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(candles))
	}
	if candles[0].Open != 10 || candles[2].Close != 13 {
		t.Errorf("candles are not oldest-first: %+v", candles)
	}
	if captured["/v5/market/kline"] != "category=linear&interval=60&limit=3&symbol=BTCUSDT" {
		t.Errorf("unexpected query %q", captured["/v5/market/kline"])
	}

	if _, err := newTestBybit(srv.URL).FetchOHLCV(context.Background(), "BTCUSDT", "8h", 3); err == nil {
		t.Error("expected error for unsupported timeframe")
	}
}

func TestBybit_PortfolioAndPrice(t *testing.T) {
	srv := bybitStub(t, map[string]string{
		"/v5/account/wallet-balance": `{"list":[{"coin":[{"coin":"BTC","equity":"1"},{"coin":"USDT","equity":"1234.5678"}]}]}`,
		"/v5/market/tickers":         `{"list":[{"symbol":"BTCUSDT","lastPrice":"42000.5"}]}`,
	}, nil)
	defer srv.Close()

	b := newTestBybit(srv.URL)
	pv, err := b.GetPortfolioValue(context.Background())
	if err != nil || pv != 1234.57 {
		t.Errorf("GetPortfolioValue = %v, %v; want 1234.57", pv, err)
	}
	price, err := b.GetCurrentPrice(context.Background(), "BTCUSDT")
	if err != nil || price != 42000.5 {
		t.Errorf("GetCurrentPrice = %v, %v; want 42000.5", price, err)
	}
}

func TestBybit_LeverageAndMargin(t *testing.T) {
	captured := map[string]string{}
	srv := bybitStub(t, map[string]string{
		"/v5/position/set-leverage":    `!{"retCode":110043,"retMsg":"leverage not modified"}`,
		"/v5/position/switch-isolated": `{}`,
	}, captured)
	defer srv.Close()

	b := newTestBybit(srv.URL)
	if err := b.UpdateLeverage(context.Background(), "BTCUSDT", 7); err != nil {
		t.Fatalf("UpdateLeverage: %v", err)
	}
	if err := b.UpdateMarginType(context.Background(), "BTCUSDT", models.MarginIsolated); err != nil {
		t.Fatalf("UpdateMarginType: %v", err)
	}

	body := captured["/v5/position/switch-isolated"]
	var got map[string]interface{}
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got["tradeMode"] != float64(1) || got["buyLeverage"] != "7" {
		t.Errorf("unexpected switch-isolated body: %s", body)
	}
}

func TestBybit_CancelOrders(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{}}`))
	}))
	defer srv.Close()

	if err := newTestBybit(srv.URL).CancelOrders(context.Background(), "BTCUSDT", []string{"1", "2", "3"}); err != nil {
		t.Fatalf("CancelOrders: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 cancel calls, got %d", calls)
	}
}
