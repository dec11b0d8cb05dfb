// Package metrics defines the Prometheus collectors shared by the writer,
// the publisher and the HTTP server. A nil *Metrics is valid and records
// nothing, so callers never need to guard their updates.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	// EntriesTotal counts appended entries.
	// Labels: kind
	EntriesTotal *prometheus.CounterVec

	// AppendErrors counts appends that failed before or during the write.
	AppendErrors prometheus.Counter

	// CommitsTotal counts publisher runs.
	// Labels: result (committed, pushed, failed)
	CommitsTotal *prometheus.CounterVec

	// HTTPRequests counts requests served by the HTTP boundary.
	// Labels: method, route, status
	HTTPRequests *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors under namespace.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		EntriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_appended_total",
			Help:      "Total number of log entries appended",
		}, []string{"kind"}),
		AppendErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "append_errors_total",
			Help:      "Total number of failed appends",
		}),
		CommitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Total number of commit attempts by outcome",
		}, []string{"result"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
	}
}

// Handler exposes the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Appended(kind string) {
	if m == nil {
		return
	}
	m.EntriesTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) AppendFailed() {
	if m == nil {
		return
	}
	m.AppendErrors.Inc()
}

// Committed records a publisher outcome: "committed", "pushed" or "failed".
func (m *Metrics) Committed(result string) {
	if m == nil {
		return
	}
	m.CommitsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Request(method, route, status string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
}
