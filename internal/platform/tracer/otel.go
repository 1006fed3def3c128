package tracer

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName names the tracer taken from the global provider.
const InstrumentationName = "consentry/gdpr"

type otelTracer struct {
	t trace.Tracer
}

// NewOTel returns a Tracer backed by t, or by the global provider's
// InstrumentationName tracer when t is nil.
func NewOTel(t trace.Tracer) Tracer {
	if t == nil {
		t = otel.Tracer(InstrumentationName)
	}
	return otelTracer{t: t}
}

func (o otelTracer) Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span) {
	ctx, s := o.t.Start(ctx, name, trace.WithAttributes(keyValues(attrs)...))
	return ctx, otelSpan{s}
}

type otelSpan struct {
	trace.Span
}

func (s otelSpan) End(err error) {
	if err != nil {
		s.Span.RecordError(err)
		s.Span.SetStatus(codes.Error, err.Error())
	} else {
		s.Span.SetStatus(codes.Ok, "")
	}
	s.Span.End()
}

func (s otelSpan) SetAttributes(attrs ...Attribute) {
	s.Span.SetAttributes(keyValues(attrs)...)
}

func (s otelSpan) AddEvent(name string, attrs ...Attribute) {
	s.Span.AddEvent(name, trace.WithAttributes(keyValues(attrs)...))
}

// KeyValue converts a to its otel form. Unrecognised values are formatted
// with fmt so no attribute is lost.
func (a Attribute) KeyValue() attribute.KeyValue {
	switch v := a.Value.(type) {
	case string:
		return attribute.String(a.Key, v)
	case bool:
		return attribute.Bool(a.Key, v)
	case int:
		return attribute.Int(a.Key, v)
	case int64:
		return attribute.Int64(a.Key, v)
	case float64:
		return attribute.Float64(a.Key, v)
	case time.Duration:
		return attribute.Int64(a.Key, v.Milliseconds())
	case fmt.Stringer:
		return attribute.String(a.Key, v.String())
	default:
		return attribute.String(a.Key, fmt.Sprint(v))
	}
}

func keyValues(attrs []Attribute) []attribute.KeyValue {
	if len(attrs) == 0 {
		return nil
	}
	kvs := make([]attribute.KeyValue, len(attrs))
	for i, a := range attrs {
		kvs[i] = a.KeyValue()
	}
	return kvs
}

// Noop discards every span. The zero value is ready to use.
type Noop struct{}

func (Noop) Start(ctx context.Context, _ string, _ ...Attribute) (context.Context, Span) {
	return ctx, Noop{}
}

func (Noop) End(error)                     {}
func (Noop) SetAttributes(...Attribute)    {}
func (Noop) AddEvent(string, ...Attribute) {}

var (
	_ Tracer = otelTracer{}
	_ Span   = otelSpan{}
	_ Tracer = Noop{}
	_ Span   = Noop{}
)
