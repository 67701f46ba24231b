package bot

import (
	"context"
	"fmt"
	"sync"

	"tradebot/internal/exchange"
	"tradebot/pkg/utils"
)

// ============================================================
// ATR (Average True Range, сглаживание Уайлдера)
// ============================================================

const (
	// ATRCandleLimit - сколько свечей запрашивать у биржи
	ATRCandleLimit = 140

	// DefaultATRWindow - период ATR
	DefaultATRWindow = 14

	atrDecimals = 6
)

// intervalTimeframes - интервал сигнала в минутах → таймфрейм свечей
var intervalTimeframes = map[int]string{
	1:   "1m",
	3:   "3m",
	5:   "5m",
	15:  "15m",
	30:  "30m",
	60:  "1h",
	120: "2h",
	240: "4h",
	360: "6h",
	480: "8h",
	720: "12h",
}

// Timeframe переводит интервал сигнала в таймфрейм свечей
func Timeframe(interval int) (string, error) {
	tf, ok := intervalTimeframes[interval]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrInvalidInterval, interval)
	}
	return tf, nil
}

// ATRSource отдаёт значение ATR для пары (тикер, интервал)
type ATRSource interface {
	Get(ctx context.Context, ticker string, interval int) (float64, error)
}

// FixedATR - постоянное значение, для тестов и ручного режима
type FixedATR float64

func (f FixedATR) Get(context.Context, string, int) (float64, error) {
	return float64(f), nil
}

// ATR считает индикатор по свечам биржи.
//
// Свечи запрашиваются лениво, при первом обращении, и результат
// кэшируется на время запроса: все фабрики видят одно значение.
type ATR struct {
	markets exchange.Markets
	window  int

	mu    sync.Mutex
	cache map[string]float64
}

// NewATR создаёт источник ATR. window <= 0 означает DefaultATRWindow.
func NewATR(markets exchange.Markets, window int) *ATR {
	if window <= 0 {
		window = DefaultATRWindow
	}
	return &ATR{
		markets: markets,
		window:  window,
		cache:   make(map[string]float64),
	}
}

func (a *ATR) Get(ctx context.Context, ticker string, interval int) (float64, error) {
	tf, err := Timeframe(interval)
	if err != nil {
		return 0, err
	}

	key := ticker + ":" + tf
	a.mu.Lock()
	defer a.mu.Unlock()
	if v, ok := a.cache[key]; ok {
		return v, nil
	}

	candles, err := a.markets.FetchOHLCV(ctx, ticker, tf, ATRCandleLimit)
	if err != nil {
		return 0, fmt.Errorf("fetch ohlcv %s %s: %w", ticker, tf, err)
	}
	// последняя свеча ещё формируется
	if len(candles) > 0 {
		candles = candles[:len(candles)-1]
	}

	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		highs[i], lows[i], closes[i] = c.High, c.Low, c.Close
	}

	v, err := WilderATR(highs, lows, closes, a.window)
	if err != nil {
		return 0, fmt.Errorf("atr %s %s: %w", ticker, tf, err)
	}
	v = utils.RoundTo(v, atrDecimals)

	utils.L().Debug("atr calculated",
		utils.Symbol(ticker),
		utils.String("timeframe", tf),
		utils.Int("candles", len(candles)),
		utils.Float64("atr", v),
	)

	a.cache[key] = v
	return v, nil
}

// WilderATR - ATR последней свечи ряда.
//
// TR[0] = high-low, далее max(high-low, |high-prevClose|, |low-prevClose|).
// Первое значение - среднее первых window TR, далее
// atr = (atr*(window-1) + tr) / window. Нужно не меньше window+1 свечей.
func WilderATR(highs, lows, closes []float64, window int) (float64, error) {
	n := len(closes)
	if window <= 0 || len(highs) != n || len(lows) != n {
		return 0, fmt.Errorf("atr: invalid input (window=%d, len=%d/%d/%d)", window, len(highs), len(lows), n)
	}
	if n < window+1 {
		return 0, fmt.Errorf("%w: have %d, need %d", ErrNotEnoughCandles, n, window+1)
	}

	tr := make([]float64, n)
	tr[0] = highs[0] - lows[0]
	for i := 1; i < n; i++ {
		tr[i] = trueRange(highs[i], lows[i], closes[i-1])
	}

	var atr float64
	for i := 0; i < window; i++ {
		atr += tr[i]
	}
	atr /= float64(window)

	w := float64(window)
	for i := window; i < n; i++ {
		atr = (atr*(w-1) + tr[i]) / w
	}
	return atr, nil
}

func trueRange(high, low, prevClose float64) float64 {
	tr := high - low
	if d := abs(high - prevClose); d > tr {
		tr = d
	}
	if d := abs(low - prevClose); d > tr {
		tr = d
	}
	return tr
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
