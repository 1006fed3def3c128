// Package tracer wraps OpenTelemetry spans for the GDPR workflow. NewOTel is
// the production Tracer and Noop is the default when none is configured.
package tracer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span. A non-nil err marks it failed. Call exactly once.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	// Start creates a span; the returned context carries it to child operations.
	//
	//   ctx, span := t.Start(ctx, tracer.SpanConfirm,
	//       tracer.String(tracer.AttrAction, "delete"),
	//   )
	//   defer func() { span.End(err) }()
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

func Float64(key string, value float64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration is recorded in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value}
}

// HashSubject returns a short SHA-256 of the normalized email so traces can
// be correlated per subject without carrying the address.
func HashSubject(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(email))
	return hex.EncodeToString(hash[:8])
}

// Span names used by the GDPR workflow.
const (
	SpanRequest       = "gdpr.request"
	SpanConfirm       = "gdpr.confirm"
	SpanSubjectLookup = "gdpr.subject.lookup"
	SpanSubjectDelete = "gdpr.subject.delete"
	SpanEmailSend     = "gdpr.email.send"
)

// Attribute keys used by the GDPR workflow.
const (
	AttrAction       = "gdpr.action"
	AttrSubjectHash  = "gdpr.subject_hash"
	AttrSubjectKnown = "gdpr.subject_known"
	AttrTemplate     = "email.template"
	AttrAttachments  = "email.attachments"
	AttrOutcome      = "gdpr.outcome"
)

// Event names used by the GDPR workflow.
const (
	EventTokenVerified = "token.verified"
	EventAuditEmitted  = "audit.emitted"
)
