package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter - token bucket поверх golang.org/x/time/rate
//
// Используется в двух местах:
//   - темп запросов к API биржи (один лимитер на биржу)
//   - ограничение webhook-запросов по IP (KeyedLimiter)
//
//	limiter := NewRateLimiter(10, 20) // 10 req/sec, burst 20
//	err := limiter.Wait(ctx)          // блокирующее ожидание
//	if limiter.Allow() { ... }        // неблокирующая проверка
type RateLimiter struct {
	l *rate.Limiter
}

// NewRateLimiter создаёт лимитер. burst < 1 заменяется на 2*rate.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		rps = 10
	}
	if burst < 1 {
		burst = int(rps * 2)
		if burst < 1 {
			burst = 1
		}
	}
	return &RateLimiter{l: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait блокирует до получения токена или отмены контекста
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.l.Wait(ctx)
}

// Allow забирает токен без ожидания
func (rl *RateLimiter) Allow() bool {
	return rl.l.Allow()
}

func (rl *RateLimiter) Rate() float64 {
	return float64(rl.l.Limit())
}

func (rl *RateLimiter) Burst() int {
	return rl.l.Burst()
}

// ============================================================
// KeyedLimiter - отдельный bucket на ключ (IP, имя биржи)
// ============================================================

type keyedEntry struct {
	limiter  *RateLimiter
	lastSeen time.Time
}

// KeyedLimiter выдаёт лимитер на ключ и забывает ключи,
// не использовавшиеся дольше idleTTL.
type KeyedLimiter struct {
	rps     float64
	burst   int
	idleTTL time.Duration

	mu        sync.Mutex
	entries   map[string]*keyedEntry
	lastPrune time.Time
	now       func() time.Time
}

// NewKeyedLimiter создаёт лимитер по ключам. idleTTL <= 0 = 10 минут.
func NewKeyedLimiter(rps float64, burst int, idleTTL time.Duration) *KeyedLimiter {
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &KeyedLimiter{
		rps:     rps,
		burst:   burst,
		idleTTL: idleTTL,
		entries: make(map[string]*keyedEntry),
		now:     time.Now,
	}
}

// Get возвращает лимитер ключа, создавая его при первом обращении
func (kl *KeyedLimiter) Get(key string) *RateLimiter {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	now := kl.now()
	if now.Sub(kl.lastPrune) > kl.idleTTL {
		kl.pruneLocked(now)
	}

	e, ok := kl.entries[key]
	if !ok {
		e = &keyedEntry{limiter: NewRateLimiter(kl.rps, kl.burst)}
		kl.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

func (kl *KeyedLimiter) Allow(key string) bool {
	return kl.Get(key).Allow()
}

func (kl *KeyedLimiter) Wait(ctx context.Context, key string) error {
	return kl.Get(key).Wait(ctx)
}

// Len - число отслеживаемых ключей
func (kl *KeyedLimiter) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.entries)
}

// вызывается под lock'ом
func (kl *KeyedLimiter) pruneLocked(now time.Time) {
	for k, e := range kl.entries {
		if now.Sub(e.lastSeen) > kl.idleTTL {
			delete(kl.entries, k)
		}
	}
	kl.lastPrune = now
}
