package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentry/internal/platform/kafka/producer"
	"consentry/pkg/requestcontext"
)

func TestPublisherFillsDefaults(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store)

	now := time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(requestcontext.WithRequestID(context.Background(), "req-1"), now)
	require.NoError(t, pub.Emit(ctx, Event{Action: EventExportRequested, Subject: "j***e@example.com"}))

	events, err := store.ListBySubject(ctx, "j***e@example.com")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)
	assert.Equal(t, now, events[0].Timestamp)
	assert.Equal(t, "req-1", events[0].RequestID)
}

func TestPublisherAsyncDrainsOnClose(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))

	for range 5 {
		require.NoError(t, pub.Emit(context.Background(), Event{Action: EventTokenRejected}))
	}
	pub.Close()
	pub.Close()
	assert.Len(t, store.All(), 5)
}

type blockingStore struct {
	release chan struct{}
}

func (b blockingStore) Append(context.Context, Event) error {
	<-b.release
	return nil
}

func TestPublisherDropsWhenQueueFull(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	store := blockingStore{release: make(chan struct{})}
	pub := NewPublisher(store, WithAsyncBuffer(1), WithPublisherMetrics(m))

	// the worker holds at most one event and the queue one more
	for range 5 {
		require.NoError(t, pub.Emit(context.Background(), Event{Action: EventTokenRejected}))
	}
	close(store.release)
	pub.Close()

	assert.GreaterOrEqual(t, testutil.ToFloat64(m.EventsDropped), 3.0)
	assert.Equal(t, 5.0, testutil.ToFloat64(m.EventsEnqueued)+testutil.ToFloat64(m.EventsDropped))
}

type failingStore struct{}

func (failingStore) Append(context.Context, Event) error { return errors.New("disk full") }

func TestPublisherMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	pub := NewPublisher(failingStore{}, WithPublisherMetrics(m))
	require.Error(t, pub.Emit(context.Background(), Event{Action: EventExportRequested}))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistFailures))

	async := NewPublisher(NewInMemoryStore(), WithAsyncBuffer(4), WithPublisherMetrics(m))
	for range 3 {
		require.NoError(t, async.Emit(context.Background(), Event{Action: EventTokenRejected}))
	}
	async.Close()
	assert.Equal(t, 3.0, testutil.ToFloat64(m.EventsEnqueued))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.EventsDropped))
	assert.Equal(t, 1, testutil.CollectAndCount(m.PersistDuration))
}

type fakeProducer struct {
	msgs []*producer.Message
	err  error
}

func (f *fakeProducer) Produce(_ context.Context, msg *producer.Message) error {
	f.msgs = append(f.msgs, msg)
	return f.err
}

func TestKafkaStore(t *testing.T) {
	p := &fakeProducer{}
	s := NewKafkaStore(p, "consentry.audit")

	require.NoError(t, s.Append(context.Background(), Event{
		Action:    EventDeletionCompleted,
		Subject:   "a***b@example.com",
		RequestID: "req-9",
	}))
	require.Len(t, p.msgs, 1)
	msg := p.msgs[0]
	assert.Equal(t, "consentry.audit", msg.Topic)
	assert.Equal(t, []byte("a***b@example.com"), msg.Key)
	assert.Contains(t, string(msg.Value), `"action":"gdpr_deletion_completed"`)
	assert.Equal(t, "req-9", msg.Headers["request_id"])

	p.err = errors.New("broker down")
	assert.Error(t, s.Append(context.Background(), Event{}))
}

func TestClientSummary(t *testing.T) {
	cases := []struct {
		name     string
		ua       string
		contains []string
	}{
		{"empty", "", []string{"unknown client"}},
		{"chrome desktop", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36", []string{"Chrome", " on "}},
		{"iphone", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1", []string{"iPhone"}},
		{"firefox linux", "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0", []string{"Firefox", "Linux"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClientSummary(tc.ua)
			for _, want := range tc.contains {
				assert.Contains(t, got, want)
			}
			assert.NotContains(t, got, "120.0")
		})
	}
}
