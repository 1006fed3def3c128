// Package tracking forwards analytics, marketing and functional events to
// their sinks when the visitor's consent allows it.
package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"consentry/internal/consent/metrics"
	"consentry/internal/consent/models"
	"consentry/internal/consent/policy"
)

// Event is one tracking call.
type Event struct {
	Name     string          `json:"name"`
	Category models.Category `json:"category"`
	Params   map[string]any  `json:"params,omitempty"`
}

// Sink delivers events for one category, e.g. a gtag, pixel or hotjar bridge.
type Sink interface {
	Send(ctx context.Context, event Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event Event) error

func (f SinkFunc) Send(ctx context.Context, event Event) error { return f(ctx, event) }

// RecordSource supplies the current consent record.
type RecordSource interface {
	Current() *models.Record
}

type Tracker struct {
	consent RecordSource
	policy  policy.Policy
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu    sync.RWMutex
	sinks map[models.Category]Sink
}

type Option func(*Tracker)

func WithPolicy(p policy.Policy) Option {
	return func(t *Tracker) {
		t.policy = p
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

// WithSink registers the sink for category.
func WithSink(category models.Category, sink Sink) Option {
	return func(t *Tracker) {
		t.sinks[category] = sink
	}
}

func New(consent RecordSource, opts ...Option) *Tracker {
	t := &Tracker{
		consent: consent,
		policy:  policy.Strict{},
		logger:  slog.Default(),
		sinks:   make(map[models.Category]Sink),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// WithSource returns a tracker sharing this tracker's sinks that reads
// consent from src.
func (t *Tracker) WithSource(src RecordSource) *Tracker {
	t.mu.RLock()
	sinks := make(map[models.Category]Sink, len(t.sinks))
	for k, v := range t.sinks {
		sinks[k] = v
	}
	t.mu.RUnlock()
	return &Tracker{consent: src, policy: t.policy, logger: t.logger, metrics: t.metrics, sinks: sinks}
}

// Track sends the event when category is allowed and a sink is registered
// for it. It reports whether the event was delivered.
func (t *Tracker) Track(ctx context.Context, name string, params map[string]any, category models.Category) bool {
	var record *models.Record
	if t.consent != nil {
		record = t.consent.Current()
	}
	if !t.policy.IsAllowed(record, category) {
		t.logger.DebugContext(ctx, "tracking blocked by consent", "event", name, "category", category)
		t.metrics.IncEventTracked(string(category), false)
		return false
	}

	t.mu.RLock()
	sink, ok := t.sinks[category]
	t.mu.RUnlock()
	if !ok {
		t.logger.DebugContext(ctx, "no tracking sink for category", "event", name, "category", category)
		t.metrics.IncEventTracked(string(category), false)
		return false
	}

	if err := sink.Send(ctx, Event{Name: name, Category: category, Params: params}); err != nil {
		t.logger.WarnContext(ctx, "tracking sink failed", "event", name, "category", category, "error", err)
		t.metrics.IncEventTracked(string(category), false)
		return false
	}
	t.metrics.IncEventTracked(string(category), true)
	return true
}

// LogSink writes events to a logger. It stands in for vendor bridges in dev.
type LogSink struct {
	Logger *slog.Logger
	Vendor string
}

func (s LogSink) Send(ctx context.Context, event Event) error {
	if s.Logger == nil {
		return fmt.Errorf("log sink %q has no logger", s.Vendor)
	}
	s.Logger.InfoContext(ctx, "tracking event", "vendor", s.Vendor, "event", event.Name, "category", event.Category)
	return nil
}

// DefaultSinks registers log sinks named after the usual vendors for each
// optional category.
func DefaultSinks(logger *slog.Logger) []Option {
	return []Option{
		WithSink(models.CategoryAnalytics, LogSink{Logger: logger, Vendor: "gtag"}),
		WithSink(models.CategoryMarketing, LogSink{Logger: logger, Vendor: "fbq"}),
		WithSink(models.CategoryFunctional, LogSink{Logger: logger, Vendor: "hotjar"}),
	}
}
