// Package service runs the data-subject request workflow: a request mails a
// signed confirmation link, and redeeming the link performs the export or
// the deletion.
package service

import (
	"context"
	"log/slog"
	"time"

	"consentry/internal/audit"
	"consentry/internal/email"
	"consentry/internal/email/templates"
	"consentry/internal/gdpr/metrics"
	"consentry/internal/gdpr/models"
	"consentry/internal/gdpr/token"
	"consentry/internal/platform/tracer"
)

// SubjectStore is the user-data boundary.
// Error Contract: FindByEmail and Delete return sentinel.ErrNotFound for
// unknown subjects.
type SubjectStore interface {
	FindByEmail(ctx context.Context, email string) (*models.Subject, error)
	Delete(ctx context.Context, email string) (*models.DeletionReceipt, error)
}

// Mailer delivers workflow emails.
type Mailer interface {
	Send(ctx context.Context, msg email.Message) error
}

// ReplayGuard makes confirmation links single-use.
type ReplayGuard interface {
	MarkUsed(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// TokenSigner issues and checks confirmation tokens.
type TokenSigner interface {
	Issue(ctx context.Context, subject string, action models.Action) (string, error)
	Inspect(ctx context.Context, tok, subject string, action models.Action) (token.Claims, bool)
}

// Config carries the site details that end up in emails and links.
type Config struct {
	SiteName string
	// SiteURL is the public base URL confirmation links point at.
	SiteURL string
	// From is the sender of every workflow email.
	From       string
	Controller templates.Controller
	// EffectTimeout bounds each adapter and transport call.
	EffectTimeout time.Duration
}

const defaultEffectTimeout = 15 * time.Second

type Service struct {
	subjects SubjectStore
	mailer   Mailer
	signer   TokenSigner
	guard    ReplayGuard
	renderer *templates.Renderer
	cfg      Config

	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         tracer.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithRenderer replaces the embedded email templates.
func WithRenderer(r *templates.Renderer) Option {
	return func(s *Service) {
		s.renderer = r
	}
}

// New builds the workflow. It fails only when the embedded templates do not parse.
func New(subjects SubjectStore, mailer Mailer, signer TokenSigner, guard ReplayGuard, cfg Config, opts ...Option) (*Service, error) {
	svc := &Service{
		subjects: subjects,
		mailer:   mailer,
		signer:   signer,
		guard:    guard,
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.tracer == nil {
		svc.tracer = tracer.Noop{}
	}
	if svc.cfg.EffectTimeout <= 0 {
		svc.cfg.EffectTimeout = defaultEffectTimeout
	}
	if svc.renderer == nil {
		r, err := templates.New()
		if err != nil {
			return nil, err
		}
		svc.renderer = r
	}
	return svc, nil
}

// RequestExport mails an export confirmation link to email.
func (s *Service) RequestExport(ctx context.Context, emailAddr, name string) (*models.RequestResult, error) {
	return s.Request(ctx, models.ActionExport, emailAddr, name)
}

// RequestDeletion mails a deletion confirmation link when email belongs to a
// known subject. The result is the same either way.
func (s *Service) RequestDeletion(ctx context.Context, emailAddr, name string) (*models.RequestResult, error) {
	return s.Request(ctx, models.ActionDelete, emailAddr, name)
}
