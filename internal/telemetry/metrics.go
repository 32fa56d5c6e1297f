package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	CapabilityCalls   *prometheus.CounterVec
	ActiveSessions    prometheus.Gauge
	PapersIngested    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scholar",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "scholar",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scholar",
			Name:      "operations_total",
			Help:      "Research operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "scholar",
			Name:      "operation_duration_seconds",
			Help:      "Research operation latency, including capability calls.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"operation"}),
		CapabilityCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scholar",
			Name:      "capability_calls_total",
			Help:      "Calls to external capabilities (search providers, language model).",
		}, []string{"capability", "provider", "outcome"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scholar",
			Name:      "active_sessions",
			Help:      "Sessions currently held in memory.",
		}),
		PapersIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scholar",
			Name:      "papers_ingested_total",
			Help:      "Paper upserts split into new papers and merges.",
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.HTTPRequests,
			m.HTTPDuration,
			m.Operations,
			m.OperationDuration,
			m.CapabilityCalls,
			m.ActiveSessions,
			m.PapersIngested,
		)
	}
	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveOperation records one orchestrator operation.
func (m *Metrics) ObserveOperation(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, outcome(err)).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// ObserveCapability records one call to an external capability.
func (m *Metrics) ObserveCapability(capability, provider string, err error) {
	if m == nil {
		return
	}
	m.CapabilityCalls.WithLabelValues(capability, provider, outcome(err)).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, method, status string, start time.Time) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, status).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
}

// PaperUpserted counts a paper upsert.
func (m *Metrics) PaperUpserted(isNew bool) {
	if m == nil {
		return
	}
	kind := "merged"
	if isNew {
		kind = "new"
	}
	m.PapersIngested.WithLabelValues(kind).Inc()
}

// SessionOpened and SessionClosed track the in-memory arena size.
func (m *Metrics) SessionOpened() {
	if m != nil {
		m.ActiveSessions.Inc()
	}
}

func (m *Metrics) SessionClosed() {
	if m != nil {
		m.ActiveSessions.Dec()
	}
}
