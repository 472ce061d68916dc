package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
	"time"
)

var (
	conveyorTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conveyor_transitions_total",
			Help: "Total number of conveyor state transitions.",
		},
		[]string{"step", "outcome"},
	)
	marketplaceRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketplace_request_duration_seconds",
			Help:    "Histogram of marketplace API request durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"operation", "status"},
	)
)

func init() {
	prometheus.MustRegister(conveyorTransitionsTotal)
	prometheus.MustRegister(marketplaceRequestDuration)
}

// RecordTransition записывает исход одного перехода конвейера.
func RecordTransition(step string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	conveyorTransitionsTotal.WithLabelValues(step, outcome).Inc()
}

// RecordMarketplaceRequest записывает метрики запроса к API маркетплейса.
func RecordMarketplaceRequest(operation string, statusCode int, duration time.Duration) {
	marketplaceRequestDuration.WithLabelValues(operation, classifyStatus(statusCode)).Observe(duration.Seconds())
}

// classifyStatus классифицирует HTTP-статус код в строку.
func classifyStatus(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "2xx"
	} else if statusCode >= 300 && statusCode < 400 {
		return "3xx"
	} else if statusCode >= 400 && statusCode < 500 {
		return "4xx"
	} else if statusCode >= 500 && statusCode < 600 {
		return "5xx"
	}
	return "unknown"
}

// MetricsHandler возвращает HTTP-обработчик для экспорта метрик Prometheus.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
