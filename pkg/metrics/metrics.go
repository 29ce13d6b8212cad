// Package metrics exposes Prometheus collectors for the advisor. A nil
// *Metrics is valid and records nothing, so components can run without a
// registry in tests and one-shot CLI commands.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "compression_advisor"

type Metrics struct {
	candidatesScored   prometheus.Counter
	candidatesExcluded *prometheus.CounterVec
	recommendations    *prometheus.CounterVec
	executions         *prometheus.CounterVec
	activeExecutions   prometheus.Gauge
	stepDuration       *prometheus.HistogramVec
	savedBytes         prometheus.Counter
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		candidatesScored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_scored_total",
			Help:      "Tables scored for compression potential.",
		}),
		candidatesExcluded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_excluded_total",
			Help:      "Tables excluded from candidate lists, by reason.",
		}, []string{"reason"}),
		recommendations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_total",
			Help:      "Recommendations produced, by scheme and priority.",
		}, []string{"scheme", "priority"}),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Executions finished, by final status.",
		}, []string{"status"}),
		activeExecutions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_executions",
			Help:      "Executions currently pending or in progress.",
		}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of execution steps, by action and outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 10),
		}, []string{"action", "outcome"}),
		savedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saved_bytes_total",
			Help:      "Measured bytes reclaimed by completed executions.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.candidatesScored,
			m.candidatesExcluded,
			m.recommendations,
			m.executions,
			m.activeExecutions,
			m.stepDuration,
			m.savedBytes,
		)
	}
	return m
}

func (m *Metrics) CandidateScored() {
	if m == nil {
		return
	}
	m.candidatesScored.Inc()
}

func (m *Metrics) CandidateExcluded(reason string) {
	if m == nil {
		return
	}
	m.candidatesExcluded.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecommendationProduced(scheme, priority string) {
	if m == nil {
		return
	}
	m.recommendations.WithLabelValues(scheme, priority).Inc()
}

func (m *Metrics) ExecutionStarted() {
	if m == nil {
		return
	}
	m.activeExecutions.Inc()
}

// ExecutionFinished records the final status and releases the active gauge
func (m *Metrics) ExecutionFinished(status string, savedBytes int64) {
	if m == nil {
		return
	}
	m.activeExecutions.Dec()
	m.executions.WithLabelValues(status).Inc()
	if savedBytes > 0 {
		m.savedBytes.Add(float64(savedBytes))
	}
}

func (m *Metrics) StepObserved(action string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.stepDuration.WithLabelValues(action, outcome).Observe(d.Seconds())
}
