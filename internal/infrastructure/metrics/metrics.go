// Package metrics exposes Prometheus collectors for HTTP traffic and
// state synchronization.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry and every collector the service exports.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	mutationsTotal   *prometheus.CounterVec
	rollbacksTotal   *prometheus.CounterVec
	autosavesTotal   *prometheus.CounterVec
	autosavedRows    prometheus.Counter
	orphansRecovered prometheus.Counter
	orphanSeconds    prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		mutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agenda_mutations_total",
				Help: "Optimistic mutations by collection, operation and result",
			},
			[]string{"collection", "op", "result"},
		),
		rollbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agenda_rollbacks_total",
				Help: "Local state restores after a failed persist",
			},
			[]string{"collection", "op"},
		),
		autosavesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agenda_timer_autosaves_total",
				Help: "Debounced saves of running timers by result",
			},
			[]string{"result"},
		),
		autosavedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agenda_timer_autosaved_rows_total",
			Help: "Running timer rows written by autosave",
		}),
		orphansRecovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agenda_timer_orphans_recovered_total",
			Help: "Timers found running at load and closed",
		}),
		orphanSeconds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agenda_timer_orphan_seconds_total",
			Help: "Time credited to recovered timers",
		}),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.mutationsTotal,
		m.rollbacksTotal,
		m.autosavesTotal,
		m.autosavedRows,
		m.orphansRecovered,
		m.orphanSeconds,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, path string, status int, d time.Duration) {
	m.requestsTotal.WithLabelValues(method, path, fmt.Sprintf("%d", status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// MutationApplied records the final result of a coordinator mutation.
func (m *Metrics) MutationApplied(collection, op string, err error) {
	m.mutationsTotal.WithLabelValues(collection, op, result(err)).Inc()
}

// RolledBack records a local restore.
func (m *Metrics) RolledBack(collection, op string) {
	m.rollbacksTotal.WithLabelValues(collection, op).Inc()
}

// Autosaved records one debounced timer save.
func (m *Metrics) Autosaved(rows int, err error) {
	m.autosavesTotal.WithLabelValues(result(err)).Inc()
	if err == nil {
		m.autosavedRows.Add(float64(rows))
	}
}

// OrphanRecovered records one recovered timer and the time credited to it.
func (m *Metrics) OrphanRecovered(d time.Duration) {
	m.orphansRecovered.Inc()
	m.orphanSeconds.Add(d.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Nop discards every observation.
type Nop struct{}

func (Nop) MutationApplied(string, string, error) {}
func (Nop) RolledBack(string, string)             {}
func (Nop) Autosaved(int, error)                  {}
func (Nop) OrphanRecovered(time.Duration)         {}
