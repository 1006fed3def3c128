package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Load outcomes.
const (
	OutcomeLoaded  = "loaded"
	OutcomeCached  = "cached"
	OutcomeBlocked = "blocked"
	OutcomeFailed  = "failed"
)

// Metrics holds Prometheus collectors for third-party script loading.
type Metrics struct {
	Loads        *prometheus.CounterVec
	LoadDuration prometheus.Histogram
	Registered   prometheus.Gauge
}

// New registers script collectors on reg. A nil reg uses the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Loads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "consentry_script_loads_total",
			Help: "Script load attempts, labeled by category and outcome",
		}, []string{"category", "outcome"}),
		LoadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "consentry_script_load_duration_seconds",
			Help:    "Time to fetch a script that was not yet loaded",
			Buckets: prometheus.DefBuckets,
		}),
		Registered: f.NewGauge(prometheus.GaugeOpts{
			Name: "consentry_scripts_registered",
			Help: "Distinct script URLs currently loaded",
		}),
	}
}

func (m *Metrics) IncLoad(category, outcome string) {
	if m == nil {
		return
	}
	m.Loads.WithLabelValues(category, outcome).Inc()
}

func (m *Metrics) ObserveLoadDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.LoadDuration.Observe(d.Seconds())
}

func (m *Metrics) SetRegistered(n int) {
	if m == nil {
		return
	}
	m.Registered.Set(float64(n))
}
