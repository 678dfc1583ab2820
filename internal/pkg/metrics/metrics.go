// Package metrics exposes Prometheus collectors for the HTTP layer and wallet engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartpay_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "code"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smartpay_http_request_duration_seconds",
			Help:    "Histogram of response latency (seconds) for HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	walletOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartpay_wallet_operations_total",
			Help: "Wallet operations by kind and outcome",
		},
		[]string{"operation", "outcome"},
	)
	walletLockHeld = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smartpay_wallet_lock_held_seconds",
			Help:    "Time spent inside the per-wallet critical section",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)
	periodResetsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartpay_wallet_period_resets_total",
			Help: "Wallets whose monthly spend was reset by the rollover worker",
		},
	)
	wsConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smartpay_websocket_connections",
			Help: "Open wallet feed connections on this instance",
		},
	)
	wsEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartpay_websocket_events_total",
			Help: "Wallet feed events by delivery result",
		},
		[]string{"result"},
	)
)

// ObserveHTTP records one finished request. route is the chi pattern, not the raw path.
func ObserveHTTP(route, method, code string, elapsed time.Duration) {
	httpRequestsTotal.WithLabelValues(route, method, code).Inc()
	httpRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// ObserveWalletOperation counts an engine call; outcome is "OK" on success, otherwise the error code (see wallet.Code).
func ObserveWalletOperation(operation, outcome string) {
	walletOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// ObserveLockHeld records how long a wallet critical section ran.
func ObserveLockHeld(elapsed time.Duration) {
	walletLockHeld.Observe(elapsed.Seconds())
}

func AddPeriodResets(n int64) {
	if n > 0 {
		periodResetsTotal.Add(float64(n))
	}
}

func WSConnected()    { wsConnections.Inc() }
func WSDisconnected() { wsConnections.Dec() }

// WSEvent counts a feed delivery attempt: "sent" or "dropped".
func WSEvent(result string) {
	wsEventsTotal.WithLabelValues(result).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
