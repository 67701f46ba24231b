package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradebot/internal/api/handlers"
	"tradebot/internal/api/middleware"
	"tradebot/internal/service"
	"tradebot/internal/websocket"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	TradeService *service.TradeService
	Hub          *websocket.Hub

	// DB - для /health, nil если журнал выключен
	DB handlers.Pinger

	// Лимит входящих торговых запросов на IP
	RateLimitRPS   float64
	RateLimitBurst int

	// TrustProxy - брать IP клиента из X-Forwarded-For
	TrustProxy bool
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
//	├── POST /webhook?userId= - торговый сигнал
//	├── POST /exit?userId= - сигнал выхода
//	├── POST /order-update?userId= - событие ордера с биржи
//	├── GET /trades?userId=&auth= - журнал сделок
//	├── GET /trades/{id}?userId=&auth= - сделка с ордерами
//	├── GET /ws/stream?userId=&auth= - WebSocket со сделками пользователя
//	├── GET /health
//	└── GET /metrics - Prometheus
//
// Middleware применяется в следующем порядке:
// 1. RequestID (для всех маршрутов)
// 2. Recovery (для всех маршрутов)
// 3. Logging (для всех маршрутов)
// 4. RateLimit (только торговые маршруты и журнал)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)

	var clients func() int
	if deps.Hub != nil {
		clients = deps.Hub.ClientCount
	}
	health := handlers.NewHealthHandler(deps.DB, clients)
	router.HandleFunc("/health", health.Health).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	if deps.TradeService != nil {
		trades := handlers.NewTradeHandler(deps.TradeService)

		signals := router.NewRoute().Subrouter()
		if deps.RateLimitRPS > 0 {
			signals.Use(middleware.RateLimit(deps.RateLimitRPS, deps.RateLimitBurst, deps.TrustProxy))
		}
		signals.HandleFunc("/webhook", trades.Webhook).Methods(http.MethodPost)
		signals.HandleFunc("/exit", trades.Exit).Methods(http.MethodPost)
		signals.HandleFunc("/order-update", trades.OrderUpdate).Methods(http.MethodPost)
		signals.HandleFunc("/trades", trades.ListTrades).Methods(http.MethodGet)
		signals.HandleFunc("/trades/{id}", trades.GetTrade).Methods(http.MethodGet)

		if deps.Hub != nil {
			stream := handlers.NewStreamHandler(deps.Hub, deps.TradeService)
			router.HandleFunc("/ws/stream", stream.ServeWS).Methods(http.MethodGet)
		}
	}

	return router
}
