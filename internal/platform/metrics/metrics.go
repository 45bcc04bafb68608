// Package metrics exposes Prometheus counters for authentication outcomes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records session lifecycle and exchange metrics.
type Collector struct {
	outcomes        *prometheus.CounterVec
	exchangeLatency *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chessmate_auth_operations_total",
			Help: "Session lifecycle operations by operation and outcome kind.",
		}, []string{"operation", "kind"}),
		exchangeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chessmate_auth_exchange_duration_seconds",
			Help:    "Latency of identity exchange calls by outcome kind.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
	}

	reg.MustRegister(c.outcomes, c.exchangeLatency)
	return c
}

// ObserveOutcome counts one operation result.
func (c *Collector) ObserveOutcome(operation, kind string) {
	c.outcomes.WithLabelValues(operation, kind).Inc()
}

// ObserveExchange records the latency of one exchange call.
func (c *Collector) ObserveExchange(kind string, d time.Duration) {
	c.exchangeLatency.WithLabelValues(kind).Observe(d.Seconds())
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
