package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for consent decisions and gating.
type Metrics struct {
	DecisionsSaved  *prometheus.CounterVec
	DecisionsReset  prometheus.Counter
	StorageFailures prometheus.Counter
	GateDecisions   *prometheus.CounterVec
	EventsTracked   *prometheus.CounterVec
	AuditScore      prometheus.Histogram
}

// New registers consent collectors on reg. A nil reg uses the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		DecisionsSaved: f.NewCounterVec(prometheus.CounterOpts{
			Name: "consentry_consent_decisions_saved_total",
			Help: "Consent decisions saved, labeled by method and outcome",
		}, []string{"method", "outcome"}),
		DecisionsReset: f.NewCounter(prometheus.CounterOpts{
			Name: "consentry_consent_decisions_reset_total",
			Help: "Consent decisions cleared by the visitor",
		}),
		StorageFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "consentry_consent_storage_failures_total",
			Help: "Consent writes that could not be persisted",
		}),
		GateDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "consentry_consent_gate_decisions_total",
			Help: "Gating decisions, labeled by category and result",
		}, []string{"category", "result"}),
		EventsTracked: f.NewCounterVec(prometheus.CounterOpts{
			Name: "consentry_tracking_events_total",
			Help: "Tracking events, labeled by category and result",
		}, []string{"category", "result"}),
		AuditScore: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "consentry_consent_audit_score",
			Help:    "Distribution of compliance audit scores",
			Buckets: []float64{20, 40, 60, 80, 100},
		}),
	}
}

func (m *Metrics) IncDecisionSaved(method, outcome string) {
	if m == nil {
		return
	}
	m.DecisionsSaved.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) IncDecisionReset() {
	if m == nil {
		return
	}
	m.DecisionsReset.Inc()
}

func (m *Metrics) IncStorageFailure() {
	if m == nil {
		return
	}
	m.StorageFailures.Inc()
}

func (m *Metrics) IncGateDecision(category string, allowed bool) {
	if m == nil {
		return
	}
	m.GateDecisions.WithLabelValues(category, result(allowed)).Inc()
}

func (m *Metrics) IncEventTracked(category string, sent bool) {
	if m == nil {
		return
	}
	m.EventsTracked.WithLabelValues(category, result(sent)).Inc()
}

func (m *Metrics) ObserveAuditScore(score int) {
	if m == nil {
		return
	}
	m.AuditScore.Observe(float64(score))
}

func result(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "blocked"
}
