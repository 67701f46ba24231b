package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики торгового ядра
// ============================================================
//
// Отдаются на /metrics. Метки exchange и kind ограничены
// списком бирж и видов ордеров, кардинальность постоянная.

const metricsNamespace = "tradebot"

// ============ Метрики латентности ============

// HandlerLatency - полное время обработки запроса ядром
var HandlerLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "handler",
		Name:      "latency_ms",
		Help:      "Time to process a request end to end in milliseconds",
		Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
	},
	[]string{"action"},
)

// ExchangeCallLatency - время одного вызова биржи
var ExchangeCallLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "exchange",
		Name:      "call_latency_ms",
		Help:      "Exchange call latency in milliseconds",
		Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500},
	},
	[]string{"exchange", "call"},
)

// ============ Счётчики ============

// WebhookRequests - запросы по результату (placed, rejected, skipped)
var WebhookRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "handler",
		Name:      "requests_total",
		Help:      "Processed requests by action and result",
	},
	[]string{"action", "result"},
)

// RiskResizes - попытки уменьшить позицию под допустимый риск
var RiskResizes = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "risk",
		Name:      "resizes_total",
		Help:      "Position resize attempts caused by portfolio risk",
	},
	[]string{"symbol"},
)

// OrdersPlaced - отправленные ордера
var OrdersPlaced = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "orders",
		Name:      "placed_total",
		Help:      "Orders accepted by the exchange",
	},
	[]string{"exchange", "kind"},
)

var OrdersRejected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "orders",
		Name:      "rejected_total",
		Help:      "Orders rejected by the exchange",
	},
	[]string{"exchange", "kind"},
)

// StopLossMoved - переносы стоп-лосса в безубыток
var StopLossMoved = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "orders",
		Name:      "stop_loss_moved_total",
		Help:      "Stop losses moved to breakeven after a take profit fill",
	},
	[]string{"exchange"},
)
