package tracer

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestNoop(t *testing.T) {
	ctx := context.Background()
	var tr Tracer = Noop{}
	got, span := tr.Start(ctx, SpanRequest, String(AttrAction, "export"))

	assert.Equal(t, ctx, got)
	require.NotNil(t, span)
	span.SetAttributes(Bool(AttrSubjectKnown, true))
	span.AddEvent(EventTokenVerified)
	span.End(errors.New("send failed"))
}

func TestOTelCarriesSpanInContext(t *testing.T) {
	tr := NewOTel(noop.NewTracerProvider().Tracer("test"))
	ctx, span := tr.Start(context.Background(), SpanConfirm, String(AttrAction, "delete"))
	require.NotNil(t, ctx)
	span.SetAttributes(Int64(AttrAttachments, 1))
	span.AddEvent(EventAuditEmitted, String("event", "gdpr_deletion_completed"))
	span.End(nil)
}

func TestNewOTelDefaultsToGlobalProvider(t *testing.T) {
	tr := NewOTel(nil)
	_, span := tr.Start(context.Background(), SpanRequest)
	span.End(errors.New("boom"))
}

func TestAttributeKeyValue(t *testing.T) {
	cases := []struct {
		in   Attribute
		want attribute.KeyValue
	}{
		{String("s", "v"), attribute.String("s", "v")},
		{Bool("b", true), attribute.Bool("b", true)},
		{Int64("i", 7), attribute.Int64("i", 7)},
		{Attribute{Key: "n", Value: 3}, attribute.Int("n", 3)},
		{Float64("f", 0.5), attribute.Float64("f", 0.5)},
		{Duration("d", 1500*time.Millisecond), attribute.Int64("d", 1500)},
		{Attribute{Key: "ip", Value: netip.MustParseAddr("10.0.0.1")}, attribute.String("ip", "10.0.0.1")},
		{Attribute{Key: "u", Value: uint8(9)}, attribute.String("u", "9")},
	}
	for _, tc := range cases {
		t.Run(tc.in.Key, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.in.KeyValue())
		})
	}
	assert.Nil(t, keyValues(nil))
}

func TestHashSubject(t *testing.T) {
	assert.Empty(t, HashSubject(""))
	assert.Len(t, HashSubject("jane@example.com"), 16)
	assert.Equal(t, HashSubject("jane@example.com"), HashSubject(" Jane@Example.com "))
	assert.NotEqual(t, HashSubject("jane@example.com"), HashSubject("john@example.com"))
}
