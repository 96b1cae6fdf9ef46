// Package metrics provides observability for the decision engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's instruments.
type Metrics struct {
	// Signal gathering latencies by source
	SignalLatency *prometheus.HistogramVec

	// Decisions by verdict and first reason code
	DecisionOutcome *prometheus.CounterVec

	// Overall evaluation latency including signal gathering
	EvaluateLatency prometheus.Histogram

	// Recovered panics converted to denials
	PanicsRecovered prometheus.Counter
}

// New registers and returns the engine metrics.
func New() *Metrics {
	return &Metrics{
		SignalLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kanon_policy_signal_duration_seconds",
			Help:    "Duration of signal gathering operations by source",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"source"}), // source: "cohort", "linkage", "consent"

		DecisionOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kanon_policy_decisions_total",
			Help: "Total policy decisions by verdict and leading reason",
		}, []string{"decision", "reason"}),

		EvaluateLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "kanon_policy_evaluate_duration_seconds",
			Help:    "Duration of full policy evaluation including signal gathering",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		PanicsRecovered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kanon_policy_panics_recovered_total",
			Help: "Total panics recovered and converted to denials",
		}),
	}
}

// ObserveSignalLatency records one signal fetch duration.
func (m *Metrics) ObserveSignalLatency(source string, d time.Duration) {
	m.SignalLatency.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveDecision records one terminal decision.
func (m *Metrics) ObserveDecision(decision, reason string, d time.Duration) {
	if reason == "" {
		reason = "none"
	}
	m.DecisionOutcome.WithLabelValues(decision, reason).Inc()
	m.EvaluateLatency.Observe(d.Seconds())
}
