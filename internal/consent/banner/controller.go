// Package banner drives the consent banner and the settings panel.
package banner

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"consentry/internal/consent/metrics"
	"consentry/internal/consent/models"
	"consentry/internal/consent/policy"
	"consentry/internal/consent/store"
	dErrors "consentry/pkg/domain-errors"
)

// Save outcomes reported to metrics.
const (
	outcomePersisted   = "persisted"
	outcomeSessionOnly = "session_only"
)

// ErrNecessaryLocked is returned when a caller tries to toggle the necessary category.
var ErrNecessaryLocked = dErrors.New(dErrors.CodeBadRequest, "necessary cookies cannot be disabled")

// State is a snapshot of what the UI should show.
type State struct {
	BannerVisible   bool             `json:"bannerVisible"`
	SettingsVisible bool             `json:"settingsVisible"`
	HasInteracted   bool             `json:"hasInteracted"`
	Draft           models.Record    `json:"draft"`
	Consent         *models.Envelope `json:"consent,omitempty"`
	Stale           bool             `json:"stale"`
}

// Controller owns banner state for one visitor. It is built explicitly with
// its store and policy.
type Controller struct {
	store   *store.Store
	policy  policy.Policy
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	maxAge  time.Duration

	mu    sync.Mutex
	state State
}

type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithMaxAge sets how long a decision stays valid before the banner
// is shown again.
func WithMaxAge(d time.Duration) Option {
	return func(c *Controller) {
		c.maxAge = d
	}
}

func New(s *store.Store, p policy.Policy, opts ...Option) *Controller {
	c := &Controller{
		store:  s,
		policy: p,
		logger: slog.Default(),
		now:    time.Now,
		maxAge: models.ConsentMaxAge,
		state:  State{Draft: models.DefaultRecord()},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.policy == nil {
		c.policy = policy.Strict{}
	}
	return c
}

// Init reads the saved decision. The banner is shown when there is none or
// when it has gone stale.
func (c *Controller) Init() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	env, ok := c.store.Load()
	c.state.SettingsVisible = false
	if !ok {
		c.state.Consent = nil
		c.state.Stale = false
		c.state.BannerVisible = true
		c.state.HasInteracted = false
		c.state.Draft = models.DefaultRecord()
		return c.state
	}

	c.state.Consent = env
	c.state.Draft = env.Preferences
	c.state.Stale = env.Expired(c.now(), c.maxAge)
	c.state.BannerVisible = c.state.Stale
	c.state.HasInteracted = !c.state.Stale
	return c.state
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) AcceptAll() (State, error) {
	return c.save(models.AcceptAll(), models.MethodBanner)
}

func (c *Controller) RejectAll() (State, error) {
	return c.save(models.RejectAll(), models.MethodBanner)
}

// OpenSettings shows the settings panel with the saved choices as the draft.
func (c *Controller) OpenSettings() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.SettingsVisible = true
	if rec := c.store.Current(); rec != nil {
		c.state.Draft = *rec
	} else {
		c.state.Draft = models.DefaultRecord()
	}
	return c.state
}

// Toggle flips one optional category in the draft. Nothing is saved until
// SaveSelection.
func (c *Controller) Toggle(category models.Category) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case category == models.CategoryNecessary:
		return c.state, ErrNecessaryLocked
	case !category.IsValid():
		return c.state, dErrors.New(dErrors.CodeInvalidInput, "unknown consent category")
	}
	c.state.Draft = c.state.Draft.With(category, !c.state.Draft.Granted(category))
	return c.state, nil
}

// SaveSelection persists the draft.
func (c *Controller) SaveSelection() (State, error) {
	c.mu.Lock()
	draft := c.state.Draft
	c.mu.Unlock()
	return c.save(draft, models.MethodSettings)
}

// SaveRecord persists record as a settings decision in one step.
func (c *Controller) SaveRecord(record models.Record, method models.Method) (State, error) {
	return c.save(record, method)
}

// CloseSettings hides the panel and drops the unsaved draft.
func (c *Controller) CloseSettings() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.SettingsVisible = false
	if c.state.Consent != nil {
		c.state.Draft = c.state.Consent.Preferences
	} else {
		c.state.Draft = models.DefaultRecord()
	}
	return c.state
}

// Reset clears the saved decision and shows the banner again.
func (c *Controller) Reset() (State, error) {
	err := c.store.Clear()
	c.metrics.IncDecisionReset()
	if err != nil {
		c.metrics.IncStorageFailure()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = State{BannerVisible: true, Draft: models.DefaultRecord()}
	return c.state, err
}

// CanRender reports whether content gated on category may be shown.
func (c *Controller) CanRender(category models.Category) bool {
	allowed := c.policy.IsAllowed(c.store.Current(), category)
	c.metrics.IncGateDecision(string(category), allowed)
	return allowed
}

// save replaces the decision wholesale. A storage failure keeps the
// decision for this session and is returned for the caller to log.
func (c *Controller) save(record models.Record, method models.Method) (State, error) {
	env, err := c.store.Save(record, method)
	outcome := outcomePersisted
	if err != nil {
		if !errors.Is(err, store.ErrStorageUnavailable) {
			return c.State(), err
		}
		outcome = outcomeSessionOnly
		c.metrics.IncStorageFailure()
	}
	c.metrics.IncDecisionSaved(string(env.Method), outcome)
	c.logger.Debug("consent decision saved", "method", env.Method, "outcome", outcome)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = State{
		HasInteracted: true,
		Draft:         env.Preferences,
		Consent:       env,
	}
	return c.state, err
}
