// Package handler serves the visitor-facing consent endpoints. The decision
// lives in the visitor's cookies; every request builds a store over them.
package handler

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"consentry/internal/consent/banner"
	"consentry/internal/consent/metrics"
	"consentry/internal/consent/models"
	"consentry/internal/consent/policy"
	"consentry/internal/consent/store"
	"consentry/internal/consent/tracking"
	"consentry/internal/scripts/loader"
	"consentry/pkg/platform/httputil"
	"consentry/pkg/requestcontext"
)

const storageWarning = "consent could not be stored and applies to this visit only"

// Handler handles consent endpoints.
type Handler struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	policy  policy.Policy
	loader  *loader.Loader
	tracker *tracking.Tracker
	scripts []string
	maxAge  time.Duration
	secure  bool
}

type Option func(*Handler)

// WithHeadScripts sets the script URLs offered by GET /consent/head.
func WithHeadScripts(scripts []string) Option {
	return func(h *Handler) {
		h.scripts = scripts
	}
}

// WithSecureCookies marks consent cookies Secure.
func WithSecureCookies(secure bool) Option {
	return func(h *Handler) {
		h.secure = secure
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// New creates a consent Handler. l and t are shared templates; each request
// binds them to the visitor's decision.
func New(l *loader.Loader, t *tracking.Tracker, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		logger:  logger,
		policy:  policy.Strict{},
		loader:  l,
		tracker: t,
		maxAge:  models.ConsentMaxAge,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the consent routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/consent", h.handleGetConsent)
	r.Post("/consent", h.handleSaveConsent)
	r.Delete("/consent", h.handleResetConsent)
	r.Get("/consent/head", h.handleHead)
	r.Post("/consent/audit", h.handleAudit)
	r.Post("/consent/track", h.handleTrack)
}

// visit is the per-request view of one visitor's decision.
type visit struct {
	cookies    *store.CookieStorage
	store      *store.Store
	controller *banner.Controller
}

func (h *Handler) newVisit(r *http.Request) *visit {
	ctx := r.Context()
	clock := func() time.Time { return requestcontext.Now(ctx) }
	cookies := store.NewCookieStorage(r, h.maxAge, h.secure)
	st := store.New(cookies, store.WithLogger(h.logger), store.WithClock(clock))
	return &visit{
		cookies: cookies,
		store:   st,
		controller: banner.New(st, h.policy,
			banner.WithLogger(h.logger),
			banner.WithMetrics(h.metrics),
			banner.WithClock(clock),
			banner.WithMaxAge(h.maxAge),
		),
	}
}

func (h *Handler) handleGetConsent(w http.ResponseWriter, r *http.Request) {
	v := h.newVisit(r)
	httputil.WriteJSON(w, http.StatusOK, StateResponse{State: v.controller.Init()})
}

func (h *Handler) handleSaveConsent(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[DecisionRequest](w, r, h.logger)
	if !ok {
		return
	}

	v := h.newVisit(r)
	var (
		state banner.State
		err   error
	)
	switch req.Action {
	case ActionAcceptAll:
		state, err = v.controller.AcceptAll()
	case ActionRejectAll:
		state, err = v.controller.RejectAll()
	default:
		state, err = v.controller.SaveRecord(req.Record(), models.MethodSettings)
	}
	h.respondState(w, r, v, state, err)
}

func (h *Handler) handleResetConsent(w http.ResponseWriter, r *http.Request) {
	v := h.newVisit(r)
	state, err := v.controller.Reset()
	h.respondState(w, r, v, state, err)
}

func (h *Handler) respondState(w http.ResponseWriter, r *http.Request, v *visit, state banner.State, err error) {
	ctx := r.Context()
	resp := StateResponse{State: state}
	if err != nil {
		if !errors.Is(err, store.ErrStorageUnavailable) {
			h.logger.ErrorContext(ctx, "failed to update consent",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
		h.logger.WarnContext(ctx, "consent kept for this visit only",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		resp.Warning = storageWarning
	}
	v.cookies.Flush(w)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handleHead renders the <script> tags this visitor's decision allows.
func (h *Handler) handleHead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v := h.newVisit(r)
	l := h.loader.WithSource(v.store)

	handles := make([]*loader.Handle, 0, len(h.scripts))
	for _, src := range h.scripts {
		category := policy.ClassifyScript(src)
		handle, err := l.LoadOnce(ctx, src, category)
		switch {
		case err == nil:
			handles = append(handles, handle)
		case errors.Is(err, loader.ErrBlockedByConsent):
			// gated out for this visitor
		default:
			h.logger.WarnContext(ctx, "script unavailable, omitted from head",
				"request_id", requestcontext.RequestID(ctx),
				"src", src,
				"error", err,
			)
		}
	}

	var buf bytes.Buffer
	if err := loader.RenderHead(&buf, handles); err != nil {
		h.logger.ErrorContext(ctx, "failed to render head", "error", err)
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[AuditRequest](w, r, h.logger)
	if !ok {
		return
	}

	v := h.newVisit(r)
	env, _ := v.store.Load()
	report := policy.Audit(policy.AuditInput{
		Envelope: env,
		Scripts:  req.Scripts,
		Cookies:  req.Cookies,
		Now:      requestcontext.Now(ctx),
	})
	h.metrics.ObserveAuditScore(report.Score)
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) handleTrack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[TrackRequest](w, r, h.logger)
	if !ok {
		return
	}

	v := h.newVisit(r)
	delivered := h.tracker.WithSource(v.store).Track(ctx, req.Name, req.Params, req.category)
	httputil.WriteJSON(w, http.StatusOK, TrackResponse{Delivered: delivered})
}
