package metrics

import (
	"errors"
	"time"

	"distributor-erp/internal/core"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the process collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	submissions    *prometheus.CounterVec
	submitDuration *prometheus.HistogramVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New registers the collectors on registerer, or on the default registry
// when registerer is nil.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "erp_document_submissions_total",
			Help: "Document submissions by voucher type and outcome.",
		}, []string{"type", "outcome"}),
		submitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "erp_document_submit_duration_seconds",
			Help:    "Latency of allocate-and-create calls.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"type"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "erp_http_requests_total",
			Help: "HTTP requests by route pattern and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "erp_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	registerer.MustRegister(m.submissions, m.submitDuration, m.httpRequests, m.httpDuration)
	return m
}

// ObserveSubmission records one submission attempt.
func (m *Metrics) ObserveSubmission(typeCode string, err error, took time.Duration) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(typeCode, Outcome(err)).Inc()
	m.submitDuration.WithLabelValues(typeCode).Observe(took.Seconds())
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

// Outcome maps a submission error to a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, core.ErrAmbiguousOutcome):
		return "ambiguous"
	case errors.Is(err, core.ErrTransientUnavailable):
		return "transient"
	case errors.Is(err, core.ErrIncompleteDocument):
		return "incomplete"
	case errors.Is(err, core.ErrValidation):
		return "invalid"
	case errors.Is(err, core.ErrConfiguration), errors.Is(err, core.ErrSequenceExhausted):
		return "configuration"
	case errors.Is(err, core.ErrUnresolvedLedger):
		return "unresolved_ledger"
	case errors.Is(err, core.ErrSubmitInFlight), errors.Is(err, core.ErrDraftLocked):
		return "rejected"
	default:
		return "error"
	}
}
