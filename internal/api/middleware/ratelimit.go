package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"tradebot/pkg/ratelimit"
	"tradebot/pkg/utils"
)

// limiterIdleTTL - через сколько забывается неактивный IP
const limiterIdleTTL = 10 * time.Minute

// RateLimit ограничивает частоту запросов с одного IP.
// Сверх лимита отвечает 429 без вызова handler.
// trustProxy включают только за своим reverse proxy: иначе клиент
// подменяет X-Forwarded-For и каждый раз получает новый bucket.
func RateLimit(rps float64, burst int, trustProxy bool) func(http.Handler) http.Handler {
	limiter := ratelimit.NewKeyedLimiter(rps, burst, limiterIdleTTL)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trustProxy)
			if !limiter.Allow(ip) {
				utils.L().WithComponent("http").Warn("rate limited",
					utils.String("remote", ip),
					utils.String("path", r.URL.Path),
					utils.RequestID(RequestIDFromContext(r.Context())),
				)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"code":429,"body":"Too Many Requests"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP - адрес соединения. С trustProxy - первый адрес X-Forwarded-For,
// если заголовок есть.
func clientIP(r *http.Request, trustProxy bool) string {
	if fwd := r.Header.Get("X-Forwarded-For"); trustProxy && fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		if ip := strings.TrimSpace(fwd); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
