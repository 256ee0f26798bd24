package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/edelagziel/SkyWatch/internal/model"
)

// Metrics holds the Prometheus instruments for the policy engine.
type Metrics struct {
	evaluationsTotal    prometheus.Counter
	evaluationDuration  prometheus.Histogram
	findingsTotal       *prometheus.CounterVec
	ruleErrorsTotal     *prometheus.CounterVec
	snapshotsRejected   prometheus.Counter
	snapshotsProcessed  prometheus.Counter
}

// NewMetrics creates and registers the engine metrics on the given
// registerer (use prometheus.DefaultRegisterer for /metrics exposure).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		evaluationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skywatch_evaluations_total",
			Help: "Total number of snapshot evaluations.",
		}),
		evaluationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "skywatch_evaluation_duration_seconds",
			Help:    "Duration of snapshot evaluations.",
			Buckets: prometheus.DefBuckets,
		}),
		findingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skywatch_findings_total",
			Help: "Total findings produced, by severity.",
		}, []string{"severity"}),
		ruleErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skywatch_rule_errors_total",
			Help: "Total evaluation errors, by error code.",
		}, []string{"code"}),
		snapshotsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skywatch_snapshots_rejected_total",
			Help: "Snapshot documents rejected before evaluation.",
		}),
		snapshotsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skywatch_snapshots_processed_total",
			Help: "Snapshot documents accepted and evaluated.",
		}),
	}
	reg.MustRegister(
		m.evaluationsTotal,
		m.evaluationDuration,
		m.findingsTotal,
		m.ruleErrorsTotal,
		m.snapshotsRejected,
		m.snapshotsProcessed,
	)
	return m
}

// ObserveEvaluation records one completed evaluation.
func (m *Metrics) ObserveEvaluation(duration time.Duration) {
	m.evaluationsTotal.Inc()
	m.evaluationDuration.Observe(duration.Seconds())
}

// IncFindings counts one finding at the given severity.
func (m *Metrics) IncFindings(severity model.Severity) {
	m.findingsTotal.WithLabelValues(string(severity)).Inc()
}

// IncRuleErrors counts one evaluation error with the given code.
func (m *Metrics) IncRuleErrors(code model.ErrorCode) {
	m.ruleErrorsTotal.WithLabelValues(string(code)).Inc()
}

// IncSnapshotsRejected counts one rejected inbound snapshot document.
func (m *Metrics) IncSnapshotsRejected() {
	m.snapshotsRejected.Inc()
}

// IncSnapshotsProcessed counts one accepted inbound snapshot document.
func (m *Metrics) IncSnapshotsProcessed() {
	m.snapshotsProcessed.Inc()
}
