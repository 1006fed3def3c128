package email

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentry/pkg/platform/circuit"
)

func validMessage() Message {
	return Message{
		From:     "Shop <gdpr@shop.example>",
		To:       "jane.doe@example.com",
		Subject:  "Confirm",
		HTMLBody: "<a href=\"https://shop.example/confirm?token=secret\">confirm</a>",
	}
}

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Message)
	}{
		{"bad from", func(m *Message) { m.From = "nope" }},
		{"bad to", func(m *Message) { m.To = "" }},
		{"empty subject", func(m *Message) { m.Subject = "" }},
		{"unnamed attachment", func(m *Message) { m.Attachments = []Attachment{{Content: []byte("x")}} }},
	}
	require.NoError(t, validMessage().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMessage()
			tt.mutate(&m)
			assert.ErrorIs(t, m.Validate(), ErrInvalidMessage)
		})
	}
}

func TestMemoryTransport(t *testing.T) {
	tr := NewMemoryTransport()
	ctx := context.Background()

	require.NoError(t, tr.Send(ctx, validMessage()))
	second := validMessage()
	second.Subject = "Done"
	require.NoError(t, tr.Send(ctx, second))

	assert.Len(t, tr.Messages(), 2)
	last, ok := tr.Last("jane.doe@example.com")
	require.True(t, ok)
	assert.Equal(t, "Done", last.Subject)

	_, ok = tr.Last("other@example.com")
	assert.False(t, ok)

	tr.Err = errors.New("down")
	assert.Error(t, tr.Send(ctx, validMessage()))
	assert.Len(t, tr.Messages(), 2)

	tr.Reset()
	assert.Empty(t, tr.Messages())
}

func TestLogTransportKeepsBodyOutOfInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	require.NoError(t, NewLogTransport(logger).Send(context.Background(), validMessage()))
	out := buf.String()
	assert.Contains(t, out, `"msg":"send email"`)
	assert.Contains(t, out, "j******e@example.com")
	assert.NotContains(t, out, "jane.doe@example.com")
	assert.NotContains(t, out, "token=secret")
}

type countingTransport struct {
	calls int
	err   error
}

func (c *countingTransport) Send(context.Context, Message) error {
	c.calls++
	return c.err
}

func TestResilient(t *testing.T) {
	now := time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	next := &countingTransport{err: errors.New("connection refused")}
	var logs bytes.Buffer
	r := NewResilient(next, "email.smtp", circuit.Settings{
		FailureThreshold: 2,
		Cooldown:         time.Minute,
		Now:              clock,
	}, slog.New(slog.NewTextHandler(&logs, nil)))
	ctx := context.Background()

	assert.Error(t, r.Send(ctx, validMessage()))
	assert.Error(t, r.Send(ctx, validMessage()))
	assert.Equal(t, circuit.StateOpen, r.State())

	assert.ErrorIs(t, r.Send(ctx, validMessage()), ErrCircuitOpen)
	assert.Equal(t, 2, next.calls)

	now = now.Add(time.Minute)
	next.err = nil
	require.NoError(t, r.Send(ctx, validMessage()))
	assert.Equal(t, 3, next.calls)
	assert.Equal(t, circuit.StateClosed, r.State())
	assert.Contains(t, logs.String(), `msg="email circuit open" breaker=email.smtp from=closed`)
	assert.Contains(t, logs.String(), `msg="email circuit closed" breaker=email.smtp from=half_open`)
}

func TestResilientIgnoresCallerErrors(t *testing.T) {
	next := &countingTransport{err: ErrInvalidMessage}
	r := NewResilient(next, "email", circuit.Settings{FailureThreshold: 1}, nil)

	for range 3 {
		assert.ErrorIs(t, r.Send(context.Background(), validMessage()), ErrInvalidMessage)
	}
	assert.Equal(t, circuit.StateClosed, r.State())
	assert.Equal(t, 3, next.calls)
}
