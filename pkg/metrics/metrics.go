package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counters and histograms for the trading and screening loops.
// Registered on the default registry at init.
var (
	SignalsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autotrader",
		Name:      "signals_emitted_total",
		Help:      "Trade signals emitted, by strategy and action.",
	}, []string{"strategy", "action"})

	OrdersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autotrader",
		Name:      "orders_submitted_total",
		Help:      "Orders submitted to the broker, by status.",
	}, []string{"status"})

	ScreeningsRun = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autotrader",
		Name:      "screenings_run_total",
		Help:      "Screener executions, by screener name.",
	}, []string{"screener"})

	ProviderFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "autotrader",
		Name:      "provider_failures_total",
		Help:      "Market data provider call failures.",
	})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "autotrader",
		Name:      "cycle_duration_seconds",
		Help:      "Duration of a full trading cycle.",
		Buckets:   prometheus.DefBuckets,
	})
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
