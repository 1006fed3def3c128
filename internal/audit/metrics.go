package audit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the publisher queue and the store behind it.
type Metrics struct {
	QueueDepth      prometheus.Gauge
	EventsEnqueued  prometheus.Counter
	EventsDropped   prometheus.Counter
	PersistDuration prometheus.Histogram
	PersistFailures prometheus.Counter
}

// NewMetrics registers the audit collectors on reg. A nil reg uses the
// default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "consentry_audit_queue_depth",
			Help: "Current number of events waiting in the audit queue",
		}),
		EventsEnqueued: f.NewCounter(prometheus.CounterOpts{
			Name: "consentry_audit_events_enqueued_total",
			Help: "Total number of audit events queued for persistence",
		}),
		EventsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "consentry_audit_events_dropped_total",
			Help: "Total number of audit events dropped because the queue was full",
		}),
		PersistDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "consentry_audit_persist_duration_seconds",
			Help:    "Time taken to persist one audit event",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		PersistFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "consentry_audit_persist_failures_total",
			Help: "Total number of audit events the store failed to persist",
		}),
	}
}

func (m *Metrics) depth(n int) {
	if m != nil {
		m.QueueDepth.Set(float64(n))
	}
}

func (m *Metrics) enqueued(depth int) {
	if m != nil {
		m.EventsEnqueued.Inc()
		m.QueueDepth.Set(float64(depth))
	}
}

func (m *Metrics) dropped() {
	if m != nil {
		m.EventsDropped.Inc()
	}
}

func (m *Metrics) persisted(took time.Duration, err error) {
	if m == nil {
		return
	}
	m.PersistDuration.Observe(took.Seconds())
	if err != nil {
		m.PersistFailures.Inc()
	}
}
