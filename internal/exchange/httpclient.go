// Package exchange предоставляет унифицированный интерфейс для работы с биржами.
package exchange

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"

	"tradebot/pkg/ratelimit"
	"tradebot/pkg/retry"
)

// HTTPClientConfig содержит настройки HTTP клиента для бирж
type HTTPClientConfig struct {
	// Таймауты соединения
	ConnectTimeout time.Duration // таймаут установки TCP соединения (default: 5s)
	ReadTimeout    time.Duration // таймаут ожидания заголовков ответа (default: 10s)
	TotalTimeout   time.Duration // общий таймаут запроса (default: 30s)

	// Connection pooling
	MaxIdleConns        int           // максимум idle соединений (default: 100)
	MaxIdleConnsPerHost int           // максимум idle соединений на хост (default: 10)
	MaxConnsPerHost     int           // максимум соединений на хост (default: 20)
	IdleConnTimeout     time.Duration // таймаут простоя соединения (default: 90s)

	TLSHandshakeTimeout time.Duration // default: 5s
	KeepAliveInterval   time.Duration // default: 30s
}

// DefaultHTTPClientConfig возвращает конфигурацию по умолчанию
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    10 * time.Second,
		TotalTimeout:   30 * time.Second,

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout: 5 * time.Second,
		KeepAliveInterval:   30 * time.Second,
	}
}

// HTTPClient - http.Client с пулом соединений, общий для всех адаптеров.
// Адаптеры создаются на каждый запрос вебхука, пул живёт весь процесс.
type HTTPClient struct {
	client *http.Client
}

var (
	globalClient     *HTTPClient
	globalClientOnce sync.Once
)

// GetGlobalHTTPClient возвращает глобальный HTTP клиент с настройками по умолчанию
func GetGlobalHTTPClient() *HTTPClient {
	globalClientOnce.Do(func() {
		globalClient = NewHTTPClient(DefaultHTTPClientConfig())
	})
	return globalClient
}

// NewHTTPClient создаёт новый HTTP клиент с заданной конфигурацией
func NewHTTPClient(config HTTPClientConfig) *HTTPClient {
	dialer := &net.Dialer{
		Timeout:   config.ConnectTimeout,
		KeepAlive: config.KeepAliveInterval,
	}

	transport := &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: dialer.DialContext,

		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		MaxConnsPerHost:     config.MaxConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,

		TLSHandshakeTimeout: config.TLSHandshakeTimeout,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},

		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: config.ReadTimeout,
	}

	return &HTTPClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   config.TotalTimeout,
		},
	}
}

// Do выполняет HTTP запрос
func (hc *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	return hc.client.Do(req)
}

// GetClient возвращает базовый http.Client (нужен go-binance)
func (hc *HTTPClient) GetClient() *http.Client {
	return hc.client
}

// Close закрывает все idle соединения
func (hc *HTTPClient) Close() {
	if transport, ok := hc.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}

// CloseGlobalClient вызывается при graceful shutdown приложения
func CloseGlobalClient() {
	if globalClient != nil {
		globalClient.Close()
	}
}

// ============================================================
// Темп запросов и повторы
// ============================================================

// pacer ограничивает частоту запросов к каждой бирже (ключ - имя+сеть).
// Лимиты бирж считаются на IP, поэтому ограничитель общий для всех пользователей.
var (
	pacerMu sync.RWMutex
	pacer   = ratelimit.NewKeyedLimiter(10, 20, 0)
)

// SetRequestRate переопределяет темп запросов к биржам (из конфигурации)
func SetRequestRate(rps float64, burst int) {
	pacerMu.Lock()
	defer pacerMu.Unlock()
	pacer = ratelimit.NewKeyedLimiter(rps, burst, 0)
}

func waitTurn(ctx context.Context, key string) error {
	pacerMu.RLock()
	p := pacer
	pacerMu.RUnlock()
	return p.Wait(ctx, key)
}

// pacerKey - ключ ограничителя для биржи и сети
func pacerKey(name string, testnet bool) string {
	if testnet {
		return name + ":testnet"
	}
	return name
}

// readRetry - повторы для идемпотентных чтений (цены, свечи, позиции).
// Размещение и отмена ордеров не повторяются.
var readRetry = retry.Config{
	MaxRetries:   3,
	InitialDelay: 200 * time.Millisecond,
	MaxDelay:     2 * time.Second,
	Multiplier:   2,
	JitterFactor: 0.1,
	RetryIf:      retry.IsRetryable,
}

// read выполняет чтение с ожиданием очереди и повторами
func read[T any](ctx context.Context, key string, op func() (T, error)) (T, error) {
	return retry.DoWithResult(ctx, func() (T, error) {
		if err := waitTurn(ctx, key); err != nil {
			var zero T
			return zero, retry.Permanent(err)
		}
		return op()
	}, readRetry)
}
