package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"consentry/pkg/requestcontext"
)

// Publisher stamps audit events and hands them to a Store. With a queue
// configured, Emit never blocks: events go to a background worker and are
// dropped when the queue is full.
type Publisher struct {
	store   Store
	log     *slog.Logger
	metrics *Metrics

	queue     chan Event
	drained   chan struct{}
	closeOnce sync.Once
}

type PublisherOption func(*Publisher)

// WithAsyncBuffer queues up to size events for a background worker.
// size <= 0 keeps Emit synchronous.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.queue = make(chan Event, size)
		}
	}
}

// WithPublisherLogger reports worker persistence failures and drops.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		if logger != nil {
			p.log = logger
		}
	}
}

func WithPublisherMetrics(m *Metrics) PublisherOption {
	return func(p *Publisher) { p.metrics = m }
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store, log: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(p)
	}
	if p.queue != nil {
		p.drained = make(chan struct{})
		go p.work()
	}
	return p
}

// Emit fills ID, Timestamp and RequestID when unset. Synchronous publishers
// return the store error; queued ones always return nil.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	stamp(ctx, &event)
	if p.queue == nil {
		return p.persist(ctx, event)
	}
	select {
	case p.queue <- event:
		p.metrics.enqueued(len(p.queue))
	default:
		p.metrics.dropped()
		p.log.WarnContext(ctx, "audit queue full, event dropped",
			"action", event.Action,
			"request_id", event.RequestID,
		)
	}
	return nil
}

// Close stops accepting events and waits until the queue is drained. Emit
// must not be called after Close.
func (p *Publisher) Close() {
	if p.queue == nil {
		return
	}
	p.closeOnce.Do(func() { close(p.queue) })
	<-p.drained
}

func (p *Publisher) work() {
	defer close(p.drained)
	ctx := context.Background()
	for event := range p.queue {
		p.metrics.depth(len(p.queue))
		if err := p.persist(ctx, event); err != nil {
			p.log.Error("failed to persist audit event",
				"error", err,
				"action", event.Action,
				"request_id", event.RequestID,
			)
		}
	}
}

func (p *Publisher) persist(ctx context.Context, event Event) error {
	start := time.Now()
	err := p.store.Append(ctx, event)
	p.metrics.persisted(time.Since(start), err)
	return err
}

func stamp(ctx context.Context, event *Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx).UTC()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
}
