package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for data-subject requests.
type Metrics struct {
	Requests       *prometheus.CounterVec
	Confirmations  *prometheus.CounterVec
	TokenRejected  *prometheus.CounterVec
	EmailsSent     *prometheus.CounterVec
	EffectDuration *prometheus.HistogramVec
}

// New registers GDPR collectors on reg. A nil reg uses the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "consentry_gdpr_requests_total",
			Help: "Data-subject requests received, labeled by action and outcome",
		}, []string{"action", "outcome"}),
		Confirmations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "consentry_gdpr_confirmations_total",
			Help: "Confirmation link redemptions, labeled by action and outcome",
		}, []string{"action", "outcome"}),
		TokenRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "consentry_gdpr_token_rejected_total",
			Help: "Verification tokens rejected, labeled by action",
		}, []string{"action"}),
		EmailsSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "consentry_gdpr_emails_total",
			Help: "Workflow emails, labeled by template and result",
		}, []string{"template", "result"}),
		EffectDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "consentry_gdpr_effect_duration_seconds",
			Help:    "Duration of the export or deletion effect after a valid confirmation",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
	}
}

func (m *Metrics) IncRequest(action, outcome string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) IncConfirmation(action, outcome string) {
	if m == nil {
		return
	}
	m.Confirmations.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) IncTokenRejected(action string) {
	if m == nil {
		return
	}
	m.TokenRejected.WithLabelValues(action).Inc()
}

func (m *Metrics) IncEmail(template string, err error) {
	if m == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.EmailsSent.WithLabelValues(template, result).Inc()
}

func (m *Metrics) ObserveEffect(action string, d time.Duration) {
	if m == nil {
		return
	}
	m.EffectDuration.WithLabelValues(action).Observe(d.Seconds())
}
