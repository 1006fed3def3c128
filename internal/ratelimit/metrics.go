package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions *prometheus.CounterVec
}

// NewMetrics registers the limiter collectors on reg. A nil reg uses the
// default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Metrics{
		Decisions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "consentry_ratelimit_decisions_total",
			Help: "Rate limit decisions, labeled by endpoint class and outcome",
		}, []string{"class", "outcome"}),
	}
}

func (m *Metrics) observe(class, outcome string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(class, outcome).Inc()
}
