// Package metrics exposes pipeline counters and latencies to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"threatscope/internal/domain"
)

const namespace = "threatscope"

// Metrics is safe for concurrent use. A nil *Metrics records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	analyses      *prometheus.CounterVec
	fetchFailures *prometheus.CounterVec
	sinkFailures  *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Completed analyses by policy, tier and transport.",
		}, []string{"policy", "tier", "transport"}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Fetches that ended in a FetchError.",
		}, []string{"transport"}),
		sinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_failures_total",
			Help:      "Result sink writes that failed, by operation.",
		}, []string{"op"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time spent fetching and extracting target content.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		}, []string{"transport"}),
	}
	m.registry.MustRegister(m.analyses, m.fetchFailures, m.sinkFailures, m.fetchDuration)
	return m
}

func (m *Metrics) ObserveFetch(transport domain.Transport, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.fetchDuration.WithLabelValues(string(transport)).Observe(took.Seconds())
	if err != nil {
		m.fetchFailures.WithLabelValues(string(transport)).Inc()
	}
}

func (m *Metrics) ObserveAnalysis(rec domain.AnalysisRecord) {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues(rec.Severity.Policy, string(rec.Severity.Tier), string(rec.Transport)).Inc()
}

func (m *Metrics) ObserveSinkFailure(op string) {
	if m == nil {
		return
	}
	m.sinkFailures.WithLabelValues(op).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
