package exchange

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ============================================================
// Таймфреймы свечей
// ============================================================

// Таймфреймы в нотации Binance ("1m", "4h"). Bybit принимает минуты.
var bybitIntervals = map[string]string{
	"1m":  "1",
	"3m":  "3",
	"5m":  "5",
	"15m": "15",
	"30m": "30",
	"1h":  "60",
	"2h":  "120",
	"4h":  "240",
	"6h":  "360",
	"12h": "720",
	"1d":  "D",
}

// ToBybitInterval переводит таймфрейм в параметр interval Bybit v5
func ToBybitInterval(timeframe string) (string, error) {
	iv, ok := bybitIntervals[strings.ToLower(timeframe)]
	if !ok {
		return "", fmt.Errorf("timeframe %q is not supported by bybit", timeframe)
	}
	return iv, nil
}

// ============================================================
// Кэш параметров инструментов
// ============================================================

// symbolInfo - точность и шаг количества, шаг цены инструмента
type symbolInfo struct {
	QuantityPrecision int32
	QuantityStep      float64
	TickSize          float64
}

type symbolCacheEntry struct {
	info    symbolInfo
	expires time.Time
}

// symbolCache хранит параметры инструментов между запросами.
// Ключ - биржа+сеть+символ: у testnet свои листинги.
type symbolCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]symbolCacheEntry
	now     func() time.Time
}

func newSymbolCache(ttl time.Duration) *symbolCache {
	return &symbolCache{
		ttl:     ttl,
		entries: make(map[string]symbolCacheEntry),
		now:     time.Now,
	}
}

func (c *symbolCache) get(key string) (symbolInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.now().After(e.expires) {
		return symbolInfo{}, false
	}
	return e.info, true
}

func (c *symbolCache) put(key string, info symbolInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = symbolCacheEntry{info: info, expires: c.now().Add(c.ttl)}
}

var instruments = newSymbolCache(15 * time.Minute)
