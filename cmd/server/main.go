package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	consenthandler "consentry/internal/consent/handler"
	consentmetrics "consentry/internal/consent/metrics"
	"consentry/internal/consent/tracking"
	"consentry/internal/email/templates"
	gdprhandler "consentry/internal/gdpr/handler"
	gdprmetrics "consentry/internal/gdpr/metrics"
	"consentry/internal/gdpr/service"
	"consentry/internal/gdpr/subjects"
	"consentry/internal/gdpr/token"
	"consentry/internal/platform/config"
	"consentry/internal/platform/health"
	"consentry/internal/platform/logger"
	"consentry/internal/platform/tracer"
	"consentry/internal/scripts/loader"
	scriptmetrics "consentry/internal/scripts/metrics"
	httptransport "consentry/internal/transport/http"
	"consentry/pkg/platform/middleware/request"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	log.Info("initializing consentry",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"site_url", cfg.SiteURL,
		"email_transport", cfg.Email.Transport,
	)
	if cfg.UsingDevSecret {
		log.Warn("GDPR_SECRET is not set; verification links are signed with the development secret")
	}

	replayGuard, err := newReplayBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer replayGuard.close()

	auditTrail, err := newAuditBackend(cfg, log)
	if err != nil {
		return err
	}
	defer auditTrail.close()

	signer, err := token.NewSigner(cfg.GDPRSecret)
	if err != nil {
		return err
	}

	subjectStore := subjects.NewInMemory()
	if cfg.SeedDemoData {
		subjectStore.Seed(time.Now())
		log.Info("seeded demo subjects", "count", subjectStore.Len())
	}

	gdprService, err := service.New(subjectStore, newMailer(cfg, log), signer, replayGuard.guard,
		service.Config{
			SiteName: cfg.SiteName,
			SiteURL:  cfg.SiteURL,
			From:     cfg.Email.From,
			Controller: templates.Controller{
				Name:    cfg.Controller.Name,
				Email:   cfg.Controller.Email,
				Phone:   cfg.Controller.Phone,
				Company: cfg.Controller.Company,
			},
			EffectTimeout: cfg.EffectTimeout,
		},
		service.WithLogger(log),
		service.WithAuditPublisher(auditTrail.publisher),
		service.WithMetrics(gdprmetrics.New(nil)),
		service.WithTracer(tracer.NewOTel(nil)),
	)
	if err != nil {
		return err
	}

	consentHandler, err := newConsentHandler(cfg, log)
	if err != nil {
		return err
	}

	healthHandler := health.New(cfg.Environment)
	if replayGuard.check != nil {
		healthHandler.RegisterCheck("replay_"+replayGuard.name, replayGuard.check)
	}
	if auditTrail.check != nil {
		healthHandler.RegisterOptional("kafka_audit", auditTrail.check)
	}

	limiter := newRequestLimiter(cfg.RateLimit, replayGuard.rates, log)

	router := httptransport.NewRouter(httptransport.Config{
		Logger:         log,
		RequestTimeout: cfg.RequestTimeout,
		TrustedProxies: cfg.TrustedProxies,
		Metrics:        request.NewMetrics(nil),
		Health:         healthHandler,
		API: []httptransport.Registrar{
			consentHandler,
			gdprhandler.New(gdprService, log, limiter.options()...),
		},
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.RequestTimeout,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr, "replay_guard", replayGuard.name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if replayGuard.sweep != nil {
		g.Go(func() error { return replayGuard.sweep(gctx) })
	}
	if limiter != nil && limiter.sweep != nil {
		g.Go(func() error { return limiter.sweep(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newConsentHandler(cfg config.Server, log *slog.Logger) (*consenthandler.Handler, error) {
	base, err := url.Parse(cfg.SiteURL)
	if err != nil {
		return nil, fmt.Errorf("SITE_URL: %w", err)
	}
	doc := loader.NewHTTPDocument(&http.Client{Timeout: cfg.Consent.ScriptFetchTimeout}, base)
	scripts := loader.New(doc, nil,
		loader.WithLogger(log),
		loader.WithMetrics(scriptmetrics.New(nil)),
	)

	consentMetrics := consentmetrics.New(nil)
	opts := append([]tracking.Option{tracking.WithLogger(log), tracking.WithMetrics(consentMetrics)},
		tracking.DefaultSinks(log)...)

	return consenthandler.New(scripts, tracking.New(nil, opts...), log,
		consenthandler.WithHeadScripts(cfg.Consent.HeadScripts),
		consenthandler.WithSecureCookies(cfg.Consent.SecureCookies),
		consenthandler.WithMetrics(consentMetrics),
	), nil
}
