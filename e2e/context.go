package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"consentry/internal/audit"
	consenthandler "consentry/internal/consent/handler"
	consentmetrics "consentry/internal/consent/metrics"
	"consentry/internal/consent/tracking"
	"consentry/internal/email"
	gdprhandler "consentry/internal/gdpr/handler"
	gdprmetrics "consentry/internal/gdpr/metrics"
	"consentry/internal/gdpr/service"
	"consentry/internal/gdpr/store/replay"
	"consentry/internal/gdpr/subjects"
	"consentry/internal/gdpr/token"
	"consentry/internal/platform/health"
	"consentry/internal/ratelimit"
	"consentry/internal/scripts/loader"
	scriptmetrics "consentry/internal/scripts/metrics"
	httptransport "consentry/internal/transport/http"
	"consentry/pkg/platform/middleware/request"
	"consentry/pkg/secrets"
)

const (
	siteName = "Consentry Test"
	mailFrom = "gdpr@consentry.test"
	secret   = "feature-test-secret"
)

// HeadScripts are offered by GET /consent/head in every scenario.
var HeadScripts = []string{
	"https://www.googletagmanager.com/gtag/js?id=G-TEST",
	"https://connect.facebook.net/en_US/fbevents.js",
	"https://static.hotjar.com/c/hotjar-1.js",
}

// RequestLimit is how many submissions one address may make per hour.
const RequestLimit = 5

// clock is the request clock shared by the server and the steps.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// acceptingDocument loads every script without touching the network.
type acceptingDocument struct{}

func (acceptingDocument) AppendScript(context.Context, *loader.Element) error { return nil }

// TestContext holds state between test steps
type TestContext struct {
	Server     *httptest.Server
	HTTPClient *http.Client
	Mailer     *email.MemoryTransport
	Subjects   *subjects.InMemory
	Audit      *audit.InMemoryStore
	Clock      *clock

	LastResponse     *http.Response
	LastResponseBody []byte
	LastLink         string
}

// NewTestContext starts the full router in-process with in-memory adapters.
func NewTestContext() (*TestContext, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	clk := &clock{now: time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC)}

	tc := &TestContext{
		Mailer:   email.NewMemoryTransport(),
		Subjects: subjects.NewInMemory(),
		Audit:    audit.NewInMemoryStore(),
		Clock:    clk,
	}
	tc.Subjects.Seed(clk.Now())

	signer, err := token.NewSigner(secrets.New(secret))
	if err != nil {
		return nil, err
	}
	publisher := audit.NewPublisher(tc.Audit, audit.WithPublisherMetrics(audit.NewMetrics(reg)))

	// The site URL is only known once the server listens; links are rebased
	// onto the test server when followed.
	svc, err := service.New(tc.Subjects, tc.Mailer, signer, replay.NewInMemory(0), service.Config{
		SiteName:      siteName,
		SiteURL:       "https://consentry.test",
		From:          mailFrom,
		EffectTimeout: 5 * time.Second,
	},
		service.WithLogger(logger),
		service.WithAuditPublisher(publisher),
		service.WithMetrics(gdprmetrics.New(reg)),
	)
	if err != nil {
		return nil, err
	}

	cm := consentmetrics.New(reg)
	scripts := loader.New(acceptingDocument{}, nil, loader.WithLogger(logger), loader.WithMetrics(scriptmetrics.New(reg)))
	trackingOpts := append([]tracking.Option{tracking.WithLogger(logger), tracking.WithMetrics(cm)},
		tracking.DefaultSinks(logger)...)
	tracker := tracking.New(nil, trackingOpts...)
	limiter := ratelimit.New(ratelimit.NewInMemoryStore(),
		ratelimit.WithLogger(logger),
		ratelimit.WithMetrics(ratelimit.NewMetrics(reg)),
	)

	router := httptransport.NewRouter(httptransport.Config{
		Logger:   logger,
		Metrics:  request.NewMetrics(reg),
		Gatherer: reg,
		Now:      clk.Now,
		Health:   health.New("test"),
		API: []httptransport.Registrar{
			consenthandler.New(scripts, tracker, logger,
				consenthandler.WithHeadScripts(HeadScripts),
				consenthandler.WithMetrics(cm),
			),
			gdprhandler.New(svc, logger, gdprhandler.WithRequestLimit(limiter.Middleware(ratelimit.Rule{
				Class:  "gdpr_request",
				Limit:  RequestLimit,
				Window: time.Hour,
			}))),
		},
	})
	tc.Server = httptest.NewServer(router)

	jar, err := cookiejar.New(nil)
	if err != nil {
		tc.Close()
		return nil, err
	}
	tc.HTTPClient = &http.Client{
		Jar:     jar,
		Timeout: 10 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return tc, nil
}

// Close stops the in-process server.
func (tc *TestContext) Close() {
	if tc.Server != nil {
		tc.Server.Close()
	}
}

// POST makes a POST request and stores the response
func (tc *TestContext) POST(path string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	return tc.do(http.MethodPost, path, bytes.NewReader(data), map[string]string{"Content-Type": "application/json"})
}

// POSTRaw sends body verbatim, e.g. to exercise malformed JSON.
func (tc *TestContext) POSTRaw(path, body string) error {
	return tc.do(http.MethodPost, path, strings.NewReader(body), map[string]string{"Content-Type": "application/json"})
}

// GET makes a GET request and stores the response
func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.do(http.MethodGet, path, nil, headers)
}

// Do sends a request with an arbitrary method.
func (tc *TestContext) Do(method, path string) error {
	return tc.do(method, path, nil, nil)
}

func (tc *TestContext) do(method, path string, body io.Reader, headers map[string]string) error {
	req, err := http.NewRequestWithContext(context.Background(), method, tc.Server.URL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}

	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	return nil
}

// Getter methods for step package interfaces

func (tc *TestContext) GetLastResponseStatus() int {
	if tc.LastResponse == nil {
		return 0
	}
	return tc.LastResponse.StatusCode
}

func (tc *TestContext) GetLastResponseHeader(name string) string {
	if tc.LastResponse == nil {
		return ""
	}
	return tc.LastResponse.Header.Get(name)
}

func (tc *TestContext) GetLastResponseBody() []byte {
	return tc.LastResponseBody
}

func (tc *TestContext) Messages() []email.Message {
	return tc.Mailer.Messages()
}

func (tc *TestContext) LastMessage(to string) (email.Message, bool) {
	return tc.Mailer.Last(to)
}

func (tc *TestContext) FailMail(err error) {
	tc.Mailer.Err = err
}

func (tc *TestContext) AuditEvents() []audit.Event {
	return tc.Audit.All()
}

func (tc *TestContext) SubjectExists(emailAddr string) bool {
	_, err := tc.Subjects.FindByEmail(context.Background(), emailAddr)
	return err == nil
}

func (tc *TestContext) AdvanceClock(d time.Duration) {
	tc.Clock.Advance(d)
}

func (tc *TestContext) SetLink(link string) {
	tc.LastLink = link
}

func (tc *TestContext) GetLink() string {
	return tc.LastLink
}
