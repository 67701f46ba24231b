package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"tradebot/pkg/utils"
)

// Recovery - middleware для восстановления после паники в handlers
//
// Перехватывает panic, пишет сообщение и stack trace в лог
// и отвечает 500 в форме {code, body}. Сервер продолжает обслуживать
// следующие запросы.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				utils.L().Error("panic in handler",
					utils.RequestID(RequestIDFromContext(r.Context())),
					utils.String("method", r.Method),
					utils.String("path", r.URL.Path),
					utils.String("panic", fmt.Sprint(rec)),
					utils.String("stack", string(debug.Stack())),
				)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"code":500,"body":"Internal Server Error"}`))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
