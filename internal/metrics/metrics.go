// Package metrics exposes Prometheus instruments for ledger operations.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Ledger groups the counters and histograms recorded by the engines.
type Ledger struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	Retries    *prometheus.CounterVec
}

// NewLedger creates the ledger instruments and registers them on reg. A nil
// registerer leaves them unregistered, which suits tests.
func NewLedger(reg prometheus.Registerer) *Ledger {
	m := &Ledger{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Ledger operations by operation and outcome kind.",
		}, []string{"operation", "outcome"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Duration of ledger operations including retries.",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2},
		}, []string{"operation"}),
		Retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_retries_total",
			Help: "Atomic units retried after a transient conflict.",
		}, []string{"operation"}),
	}
	if reg != nil {
		reg.MustRegister(m.Operations, m.Duration, m.Retries)
	}
	return m
}

// Observe records one finished operation. Safe on a nil receiver.
func (m *Ledger) Observe(operation, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, outcome).Inc()
	m.Duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// Retry counts one retried attempt. Safe on a nil receiver.
func (m *Ledger) Retry(operation string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(operation).Inc()
}

// HTTP groups the request instruments recorded by the server middleware.
type HTTP struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewHTTP creates the HTTP instruments and registers them on reg when non-nil.
func NewHTTP(reg prometheus.Registerer) *HTTP {
	m := &HTTP{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.Duration)
	}
	return m
}

// Observe records one served request. Safe on a nil receiver.
func (m *HTTP) Observe(route, method string, status int, started time.Time) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.Duration.WithLabelValues(route, method).Observe(time.Since(started).Seconds())
}
