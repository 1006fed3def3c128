// Package loader inserts third-party scripts into a page at most once per
// URL, and only when the visitor's consent allows the script's category.
package loader

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"consentry/internal/consent/models"
	"consentry/internal/consent/policy"
	"consentry/internal/scripts/metrics"
	dErrors "consentry/pkg/domain-errors"
)

var (
	// ErrBlockedByConsent is returned when the category is not allowed. It is
	// deterministic; retrying without a new consent decision fails the same way.
	ErrBlockedByConsent = dErrors.New(dErrors.CodeMissingConsent, "script blocked by consent")

	// ErrLoadFailed is returned when the document could not load the script.
	ErrLoadFailed = dErrors.New(dErrors.CodeUnavailable, "script load failed")
)

// DefaultLoadTimeout bounds one shared insertion, independent of the callers
// waiting on it.
const DefaultLoadTimeout = 30 * time.Second

// RecordSource supplies the current consent record; nil means no decision yet.
type RecordSource interface {
	Current() *models.Record
}

// Loader gates and de-duplicates script insertion.
type Loader struct {
	doc      Document
	consent  RecordSource
	registry *Registry
	policy   policy.Policy
	logger   *slog.Logger
	metrics  *metrics.Metrics
	inflight *singleflight.Group
	timeout  time.Duration
}

type Option func(*Loader)

// WithRegistry shares a registry between loaders, e.g. one loader per request.
func WithRegistry(r *Registry) Option {
	return func(l *Loader) {
		l.registry = r
	}
}

func WithPolicy(p policy.Policy) Option {
	return func(l *Loader) {
		l.policy = p
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loader) {
		l.metrics = m
	}
}

// WithLoadTimeout bounds each insertion. Non-positive values are ignored.
func WithLoadTimeout(d time.Duration) Option {
	return func(l *Loader) {
		if d > 0 {
			l.timeout = d
		}
	}
}

func New(doc Document, consent RecordSource, opts ...Option) *Loader {
	l := &Loader{
		doc:      doc,
		consent:  consent,
		policy:   policy.Strict{},
		logger:   slog.Default(),
		inflight: &singleflight.Group{},
		timeout:  DefaultLoadTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.registry == nil {
		l.registry = NewRegistry()
	}
	return l
}

// WithSource returns a loader that reads consent from src and shares this
// loader's document, registry and in-flight loads.
func (l *Loader) WithSource(src RecordSource) *Loader {
	clone := *l
	clone.consent = src
	return &clone
}

// Registry returns the registry of loaded scripts.
func (l *Loader) Registry() *Registry {
	return l.registry
}

type loadOptions struct {
	async      bool
	deferred   bool
	onLoad     func(*Handle)
	onError    func(error)
	attributes map[string]string
}

type LoadOption func(*loadOptions)

// WithAsync sets the async attribute. Default true.
func WithAsync(async bool) LoadOption {
	return func(o *loadOptions) {
		o.async = async
	}
}

func WithDefer(deferred bool) LoadOption {
	return func(o *loadOptions) {
		o.deferred = deferred
	}
}

// WithOnLoad registers a callback fired on success, including when the
// script was already loaded.
func WithOnLoad(fn func(*Handle)) LoadOption {
	return func(o *loadOptions) {
		o.onLoad = fn
	}
}

// WithOnError registers a callback fired on any failure, including a
// consent block.
func WithOnError(fn func(error)) LoadOption {
	return func(o *loadOptions) {
		o.onError = fn
	}
}

func WithAttribute(key, value string) LoadOption {
	return func(o *loadOptions) {
		if o.attributes == nil {
			o.attributes = make(map[string]string)
		}
		o.attributes[key] = value
	}
}

// LoadOnce inserts src unless it is already loaded. Concurrent calls for the
// same src share one insertion. A failed load leaves nothing registered, so
// a later call tries again.
func (l *Loader) LoadOnce(ctx context.Context, src string, category models.Category, opts ...LoadOption) (*Handle, error) {
	o := loadOptions{async: true}
	for _, opt := range opts {
		opt(&o)
	}

	var record *models.Record
	if l.consent != nil {
		record = l.consent.Current()
	}
	if !l.policy.IsAllowed(record, category) {
		l.metrics.IncLoad(string(category), metrics.OutcomeBlocked)
		l.logger.DebugContext(ctx, "script blocked by consent", "src", src, "category", category)
		return nil, l.fail(o, dErrors.Wrap(ErrBlockedByConsent, dErrors.CodeMissingConsent, "script blocked by consent: "+src))
	}

	if h, ok := l.registry.Get(src); ok {
		l.metrics.IncLoad(string(category), metrics.OutcomeCached)
		return l.succeed(o, h), nil
	}

	// The insertion is shared, so one caller giving up must not cancel it
	// for the others.
	shared := context.WithoutCancel(ctx)
	ch := l.inflight.DoChan(src, func() (any, error) {
		if h, ok := l.registry.Get(src); ok {
			return h, nil
		}
		loadCtx, cancel := context.WithTimeout(shared, l.timeout)
		defer cancel()
		el := &Element{
			Src:        src,
			Category:   category,
			Async:      o.async,
			Defer:      o.deferred,
			Attributes: o.attributes,
		}
		start := time.Now()
		if err := l.doc.AppendScript(loadCtx, el); err != nil {
			return nil, err
		}
		l.metrics.ObserveLoadDuration(time.Since(start))
		h := &Handle{Element: el, LoadedAt: time.Now()}
		l.metrics.SetRegistered(l.registry.put(h))
		return h, nil
	})

	var (
		v   any
		err error
	)
	select {
	case res := <-ch:
		v, err = res.Val, res.Err
	case <-ctx.Done():
		l.logger.DebugContext(ctx, "stopped waiting for script load", "src", src, "error", ctx.Err())
		return nil, l.fail(o, ctx.Err())
	}
	if err != nil {
		l.metrics.IncLoad(string(category), metrics.OutcomeFailed)
		l.logger.WarnContext(ctx, "script load failed", "src", src, "error", err)
		return nil, l.fail(o, &dErrors.Error{Code: dErrors.CodeUnavailable, Message: "script load failed: " + src, Err: err})
	}

	l.metrics.IncLoad(string(category), metrics.OutcomeLoaded)
	return l.succeed(o, v.(*Handle)), nil
}

func (l *Loader) succeed(o loadOptions, h *Handle) *Handle {
	if o.onLoad != nil {
		o.onLoad(h)
	}
	return h
}

func (l *Loader) fail(o loadOptions, err error) error {
	if o.onError != nil {
		o.onError(err)
	}
	return err
}
