// Package handler serves the data-subject request endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"consentry/internal/gdpr/models"
	"consentry/pkg/platform/httputil"
	"consentry/pkg/platform/privacy"
	"consentry/pkg/requestcontext"
)

// Service runs the request and confirmation workflow.
type Service interface {
	RequestExport(ctx context.Context, email, name string) (*models.RequestResult, error)
	ConfirmExport(ctx context.Context, token, email string) (*models.ExportResult, error)
	RequestDeletion(ctx context.Context, email, name string) (*models.RequestResult, error)
	ConfirmDeletion(ctx context.Context, token, email, name string) (*models.DeletionResult, error)
}

// Handler handles GDPR endpoints.
type Handler struct {
	service      Service
	logger       *slog.Logger
	requestLimit func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithRequestLimit wraps the two submission endpoints. Confirmation links
// are not limited.
func WithRequestLimit(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.requestLimit = mw
	}
}

func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{service: service, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the GDPR routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	submit := r
	if h.requestLimit != nil {
		submit = r.With(h.requestLimit)
	}
	submit.Post("/gdpr/export", h.handleRequestExport)
	r.Get("/gdpr/export/confirm", h.handleConfirmExport)
	submit.Post("/gdpr/delete-request", h.handleRequestDeletion)
	r.Get("/gdpr/delete-request/confirm", h.handleConfirmDeletion)
}

func (h *Handler) handleRequestExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[SubjectRequest](w, r, h.logger)
	if !ok {
		return
	}

	res, err := h.service.RequestExport(ctx, req.Email, req.Name)
	if err != nil {
		h.fail(ctx, w, "export request failed", req.Email, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, res)
}

func (h *Handler) handleRequestDeletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[SubjectRequest](w, r, h.logger)
	if !ok {
		return
	}

	res, err := h.service.RequestDeletion(ctx, req.Email, req.Name)
	if err != nil {
		h.fail(ctx, w, "deletion request failed", req.Email, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleConfirmExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := parseConfirmQuery(r)

	res, err := h.service.ConfirmExport(ctx, q.Token, q.Email)
	if err != nil {
		h.fail(ctx, w, "export confirmation failed", q.Email, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleConfirmDeletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := parseConfirmQuery(r)

	res, err := h.service.ConfirmDeletion(ctx, q.Token, q.Email, q.Name)
	if err != nil {
		h.fail(ctx, w, "deletion confirmation failed", q.Email, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg, email string, err error) {
	level := slog.LevelWarn
	if httputil.StatusOf(err) >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"email", privacy.AnonymizeEmail(email),
		"error", err,
	)
	httputil.WriteError(w, err)
}
