// Package metrics provides Prometheus instrumentation for capture, duplicate
// matching and the quota gate. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector cardscan exports.
type Metrics struct {
	// Classification calls by kind ("detect", "extract") and outcome ("ok", "error")
	ClassifierCalls *prometheus.CounterVec

	// Classification latency by kind
	ClassifierLatency *prometheus.HistogramVec

	// Capture state transitions by target state
	CaptureTransitions *prometheus.CounterVec

	// Completed captures by trigger ("auto", "manual")
	Captures *prometheus.CounterVec

	// Duplicate hits by rule ("email", "phone", "name")
	DuplicateHits *prometheus.CounterVec

	// Quota decisions by outcome ("allowed", "warning", "denied", "bypass", "fail_open")
	QuotaDecisions *prometheus.CounterVec

	// Usage increments by kind ("increment", "rollover", "error")
	UsageWrites *prometheus.CounterVec
}

// New registers all collectors with reg. Use prometheus.DefaultRegisterer in
// binaries and prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ClassifierCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cardscan_classifier_calls_total",
			Help: "Image classifier calls by kind and outcome",
		}, []string{"kind", "outcome"}),

		ClassifierLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cardscan_classifier_duration_seconds",
			Help:    "Duration of image classifier calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		}, []string{"kind"}),

		CaptureTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cardscan_capture_transitions_total",
			Help: "Capture state machine transitions by target state",
		}, []string{"state"}),

		Captures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cardscan_captures_total",
			Help: "Full-resolution captures by trigger",
		}, []string{"trigger"}),

		DuplicateHits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cardscan_duplicate_hits_total",
			Help: "Duplicate matches by the rule that fired",
		}, []string{"rule"}),

		QuotaDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cardscan_quota_decisions_total",
			Help: "Quota gate decisions by outcome",
		}, []string{"outcome"}),

		UsageWrites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cardscan_usage_writes_total",
			Help: "Usage counter writes by kind",
		}, []string{"kind"}),
	}
}

// ObserveClassifier records one classifier call.
func (m *Metrics) ObserveClassifier(kind string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ClassifierCalls.WithLabelValues(kind, outcome).Inc()
	m.ClassifierLatency.WithLabelValues(kind).Observe(d.Seconds())
}

// IncrementTransition records a capture state change.
func (m *Metrics) IncrementTransition(state string) {
	if m != nil {
		m.CaptureTransitions.WithLabelValues(state).Inc()
	}
}

// IncrementCapture records a full-resolution capture.
func (m *Metrics) IncrementCapture(manual bool) {
	if m == nil {
		return
	}
	trigger := "auto"
	if manual {
		trigger = "manual"
	}
	m.Captures.WithLabelValues(trigger).Inc()
}

// IncrementDuplicate records a duplicate hit.
func (m *Metrics) IncrementDuplicate(rule string) {
	if m != nil {
		m.DuplicateHits.WithLabelValues(rule).Inc()
	}
}

// IncrementQuotaDecision records a quota gate outcome.
func (m *Metrics) IncrementQuotaDecision(outcome string) {
	if m != nil {
		m.QuotaDecisions.WithLabelValues(outcome).Inc()
	}
}

// IncrementUsageWrite records a usage counter write.
func (m *Metrics) IncrementUsageWrite(kind string) {
	if m != nil {
		m.UsageWrites.WithLabelValues(kind).Inc()
	}
}
