package retry

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config конфигурация повторных попыток
//
// Используется только для идемпотентных запросов к бирже (цены, свечи,
// позиции, баланс). Размещение ордеров не повторяется: повтор может
// создать дубликат.
type Config struct {
	// MaxRetries - максимальное количество попыток, включая первую
	MaxRetries int

	// InitialDelay - задержка перед второй попыткой
	InitialDelay time.Duration

	// MaxDelay - верхняя граница задержки
	MaxDelay time.Duration

	// Multiplier - множитель роста задержки
	Multiplier float64

	// JitterFactor - доля случайности задержки (0.0 - 1.0)
	JitterFactor float64

	// RetryIf решает, стоит ли повторять ошибку. nil = повторять все
	RetryIf func(error) bool

	// OnRetry вызывается перед каждым повтором
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig - 3 попытки, 200ms -> 400ms
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
		RetryIf:      IsRetryable,
	}
}

func (c Config) normalized() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 1
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	if c.JitterFactor < 0 {
		c.JitterFactor = 0
	}
	if c.JitterFactor > 1 {
		c.JitterFactor = 1
	}
	return c
}

// backOff собирает стратегию backoff: экспонента, лимит попыток, контекст
func (c Config) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.InitialDelay
	exp.MaxInterval = c.MaxDelay
	exp.Multiplier = c.Multiplier
	exp.RandomizationFactor = c.JitterFactor
	exp.MaxElapsedTime = 0 // ограничиваем числом попыток, а не временем
	exp.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.MaxRetries-1)), ctx)
}

// Do выполняет операцию с повторными попытками.
// Возвращает nil при успехе или последнюю ошибку.
//
//	err := retry.Do(ctx, func() error {
//	    return client.CancelOrders(ctx, ticker, ids)
//	}, retry.DefaultConfig())
func Do(ctx context.Context, operation func() error, cfg Config) error {
	_, err := DoWithResult(ctx, func() (struct{}, error) {
		return struct{}{}, operation()
	}, cfg)
	return err
}

// DoWithResult - Do для операций, возвращающих значение
//
//	price, err := retry.DoWithResult(ctx, func() (float64, error) {
//	    return markets.GetCurrentPrice(ctx, ticker)
//	}, retry.DefaultConfig())
func DoWithResult[T any](ctx context.Context, operation func() (T, error), cfg Config) (T, error) {
	cfg = cfg.normalized()

	wrapped := func() (T, error) {
		res, err := operation()
		if err != nil && cfg.RetryIf != nil && !cfg.RetryIf(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	attempt := 0
	notify := func(err error, delay time.Duration) {
		attempt++
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
	}

	return backoff.RetryNotifyWithData(wrapped, cfg.backOff(ctx), notify)
}

// ============================================================
// Классификация ошибок
// ============================================================

// RetryableError - ошибка, сама сообщающая, можно ли её повторять
type RetryableError interface {
	error
	Retryable() bool
}

// IsRetryable - классификатор по умолчанию.
//
// Не повторяются: отмена контекста и ошибки, явно помеченные
// как неповторяемые. Сетевые таймауты повторяются.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var re RetryableError
	if errors.As(err, &re) {
		return re.Retryable()
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}

	return true
}

// permanentError помечает ошибку как неповторяемую
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }
func (e *permanentError) Retryable() bool { return false }

// Permanent оборачивает ошибку так, что IsRetryable вернёт false
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}
