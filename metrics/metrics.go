// Package metrics holds the Prometheus collectors for ingestion and reports.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	calls *prometheus.CounterVec

	duplicates prometheus.Counter

	machines prometheus.Counter

	cacheLookups *prometheus.CounterVec
}

func New() *Metrics {

	m := &Metrics{

		registry: prometheus.NewRegistry(),

		calls: prometheus.NewCounterVec(prometheus.CounterOpts{

			Namespace: "statsdb",

			Name: "api_calls_total",

			Help: "API calls by method and outcome.",
		}, []string{"method", "outcome"}),

		duplicates: prometheus.NewCounter(prometheus.CounterOpts{

			Namespace: "statsdb",

			Name: "duplicate_submissions_total",

			Help: "Stats submissions skipped because their log id was already ingested.",
		}),

		machines: prometheus.NewCounter(prometheus.CounterOpts{

			Namespace: "statsdb",

			Name: "machine_configs_created_total",

			Help: "Machine configs created on first sighting.",
		}),

		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{

			Namespace: "statsdb",

			Name: "report_cache_lookups_total",

			Help: "Report query cache lookups by report and result.",
		}, []string{"report", "result"}),
	}

	m.registry.MustRegister(

		m.calls,

		m.duplicates,

		m.machines,

		m.cacheLookups,

		collectors.NewGoCollector(),

		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler exposes the registry for scraping
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Call(method, outcome string) {

	if m == nil {
		return
	}

	m.calls.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) Duplicate() {

	if m == nil {
		return
	}

	m.duplicates.Inc()
}

func (m *Metrics) MachineCreated() {

	if m == nil {
		return
	}

	m.machines.Inc()
}

// CacheLookup records whether a report was served from the query cache
func (m *Metrics) CacheLookup(report string, hit bool) {

	if m == nil {
		return
	}

	result := "miss"

	if hit {
		result = "hit"
	}

	m.cacheLookups.WithLabelValues(report, result).Inc()
}
