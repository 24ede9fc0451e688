// Package observability holds the Prometheus metrics for the process.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics owns a private registry so constructing it twice (tests) never
// panics on duplicate collectors.
type Metrics struct {
	Registry *prometheus.Registry

	pullsTotal   *prometheus.CounterVec
	pullsSkipped prometheus.Counter
	mergedTotal  prometheus.Counter
	pushesTotal  *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		pullsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kitty_sync_pulls_total",
				Help: "Remote pulls by mode (full, incremental) and result.",
			},
			[]string{"mode", "result"},
		),
		pullsSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "kitty_sync_pulls_skipped_total",
				Help: "Poll ticks skipped because a pull was already in flight.",
			},
		),
		mergedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "kitty_sync_merged_transactions_total",
				Help: "Remote transactions merged into the local ledger.",
			},
		),
		pushesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kitty_sync_pushes_total",
				Help: "Fire-and-forget pushes by kind (entry, backup) and result.",
			},
			[]string{"kind", "result"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kitty_http_requests_total",
				Help: "HTTP requests by status class.",
			},
			[]string{"status"},
		),
	}
}

// IncrPull records a completed pull attempt.
func (m *Metrics) IncrPull(mode, result string) {
	m.pullsTotal.WithLabelValues(mode, result).Inc()
}

// IncrPullSkipped records a tick dropped by the in-flight guard.
func (m *Metrics) IncrPullSkipped() {
	m.pullsSkipped.Inc()
}

// AddMerged records transactions accepted from a remote batch.
func (m *Metrics) AddMerged(n int) {
	m.mergedTotal.Add(float64(n))
}

// IncrPush records a push attempt.
func (m *Metrics) IncrPush(kind, result string) {
	m.pushesTotal.WithLabelValues(kind, result).Inc()
}

// IncrHTTPRequest records a served request by status class ("2xx", "4xx", ...).
func (m *Metrics) IncrHTTPRequest(status string) {
	m.httpRequests.WithLabelValues(status).Inc()
}
