// Package metrics provides Prometheus instrumentation for the trading
// backend.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts trade state changes, partitioned by resulting status.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opinix_trades_total",
		Help: "Total number of trade state changes",
	}, []string{"status"})

	// TradeStakeTotal accumulates staked amounts across executed trades.
	TradeStakeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "opinix_trade_stake_total",
		Help: "Cumulative stake across executed trades",
	})

	// SettlementsTotal counts settled trades by outcome.
	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opinix_settlements_total",
		Help: "Total settled trades by outcome",
	}, []string{"outcome"})

	// SettlementPayoutTotal accumulates credited payouts.
	SettlementPayoutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "opinix_settlement_payout_total",
		Help: "Cumulative payout credited to winners",
	})

	// SettlementLatency tracks batch settlement duration per event.
	SettlementLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "opinix_settlement_latency_seconds",
		Help:    "Batch settlement duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// WebSocketClients tracks connected websocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "opinix_websocket_clients",
		Help: "Number of connected websocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opinix_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "opinix_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
