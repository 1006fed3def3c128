// Package store persists a visitor's consent decision in key/value storage
// and broadcasts every change to subscribers.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"consentry/internal/consent/models"
	"consentry/internal/sentinel"
)

// Storage keys.
const (
	KeyConsent     = "cookie-consent"
	KeyConsentDate = "cookie-consent-date"
	KeyVersion     = "gdpr-consent-version"
)

// ErrStorageUnavailable marks a write that updated in-memory state but could
// not be persisted. Callers may log it and continue.
var ErrStorageUnavailable = fmt.Errorf("consent storage unavailable: %w", sentinel.ErrUnavailable)

// Change is delivered to subscribers after every Save and Clear.
// Record and Envelope are nil after Clear.
type Change struct {
	Record   *models.Record
	Envelope *models.Envelope
}

// Listener receives consent changes.
type Listener func(Change)

type subscription struct {
	id uint64
	fn Listener
}

// Store owns the visitor's consent envelope.
type Store struct {
	storage Storage
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	current   *models.Envelope
	dirty     bool // current differs from what storage holds
	listeners []subscription
	nextID    uint64
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock overrides the clock used to stamp SavedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(storage Storage, opts ...Option) *Store {
	s := &Store{
		storage: storage,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the saved envelope. It reports absent when nothing was saved,
// when the stored value does not parse, or when storage cannot be read and
// nothing was saved during this session.
func (s *Store) Load() (*models.Envelope, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (*models.Envelope, bool) {
	if s.dirty {
		if s.current == nil {
			return nil, false
		}
		env := *s.current
		return &env, true
	}

	raw, ok, err := s.storage.GetItem(KeyConsent)
	if err != nil {
		s.logger.Warn("consent storage read failed", "error", err)
		if s.current != nil {
			env := *s.current
			return &env, true
		}
		return nil, false
	}
	if !ok {
		s.current = nil
		return nil, false
	}

	env, err := s.decode(raw)
	if err != nil {
		s.logger.Warn("stored consent is unreadable, treating as absent", "error", err)
		s.current = nil
		return nil, false
	}
	s.current = env
	out := *env
	return &out, true
}

// errNoConsent marks a stored value that parses but carries no decision.
var errNoConsent = errors.New("stored value holds no consent categories")

// recordKeys are the category keys of the bare record form.
var recordKeys = []string{"necessary", "analytics", "marketing", "functional"}

// decode accepts the envelope form and the bare record form, which carries
// its timestamp and version under separate keys. A value with neither a
// non-null preferences object nor any category key is not a decision.
func (s *Store) decode(raw string) (*models.Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errNoConsent
	}

	if prefs, ok := fields["preferences"]; ok {
		if isNull(prefs) {
			return nil, errNoConsent
		}
		var stored struct {
			Preferences *models.Record `json:"preferences"`
			SavedAt     time.Time      `json:"savedAt"`
			Version     string         `json:"version"`
			Method      models.Method  `json:"method"`
		}
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			return nil, err
		}
		env := models.Envelope{
			Preferences: *stored.Preferences,
			SavedAt:     stored.SavedAt,
			Version:     stored.Version,
			Method:      stored.Method,
		}
		if env.Version == "" {
			env.Version = models.SchemaVersion
		}
		return &env, nil
	}

	if !hasRecordKey(fields) {
		return nil, errNoConsent
	}
	var record models.Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, err
	}
	env := models.Envelope{Preferences: record, Version: models.SchemaVersion}
	if date, ok, err := s.storage.GetItem(KeyConsentDate); err == nil && ok {
		if t, err := time.Parse(time.RFC3339Nano, date); err == nil {
			env.SavedAt = t
		}
	}
	if version, ok, err := s.storage.GetItem(KeyVersion); err == nil && ok && version != "" {
		env.Version = version
	}
	return &env, nil
}

func hasRecordKey(fields map[string]json.RawMessage) bool {
	for _, key := range recordKeys {
		if v, ok := fields[key]; ok && !isNull(v) {
			return true
		}
	}
	return false
}

func isNull(v json.RawMessage) bool {
	return string(bytes.TrimSpace(v)) == "null"
}

// Current returns the saved record or nil when absent.
func (s *Store) Current() *models.Record {
	env, ok := s.Load()
	if !ok {
		return nil
	}
	record := env.Preferences
	return &record
}

// Save replaces the decision wholesale. In-memory state is updated before
// persisting, so on ErrStorageUnavailable the returned envelope is still
// current for this session. Subscribers are notified in both cases.
func (s *Store) Save(record models.Record, method models.Method) (*models.Envelope, error) {
	s.mu.Lock()
	env := models.NewEnvelope(record, method, s.now())
	s.current = &env
	s.dirty = true

	err := s.persistLocked(env)
	if err == nil {
		s.dirty = false
	}
	listeners := s.snapshotLocked()
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("consent saved for this session only", "error", err)
	}

	out := env
	prefs := env.Preferences
	notify(listeners, Change{Record: &prefs, Envelope: &out})
	return &out, err
}

func (s *Store) persistLocked(env models.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode consent: %w", err)
	}
	if err := s.storage.SetItem(KeyConsent, string(b)); err != nil {
		return errors.Join(ErrStorageUnavailable, err)
	}
	if err := s.storage.SetItem(KeyConsentDate, env.SavedAt.Format(time.RFC3339Nano)); err != nil {
		return errors.Join(ErrStorageUnavailable, err)
	}
	if err := s.storage.SetItem(KeyVersion, env.Version); err != nil {
		return errors.Join(ErrStorageUnavailable, err)
	}
	return nil
}

// Clear removes the decision and notifies subscribers with a nil record.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.current = nil
	s.dirty = true

	var errs []error
	for _, key := range []string{KeyConsent, KeyConsentDate, KeyVersion} {
		if err := s.storage.RemoveItem(key); err != nil {
			errs = append(errs, err)
		}
	}
	var err error
	if len(errs) > 0 {
		err = errors.Join(append([]error{ErrStorageUnavailable}, errs...)...)
	} else {
		s.dirty = false
	}
	listeners := s.snapshotLocked()
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("consent cleared for this session only", "error", err)
	}
	notify(listeners, Change{})
	return err
}

// Subscribe registers fn for every later change. The returned func removes it
// and is safe to call more than once.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.listeners {
				if sub.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) snapshotLocked() []Listener {
	out := make([]Listener, len(s.listeners))
	for i, sub := range s.listeners {
		out[i] = sub.fn
	}
	return out
}

// notify runs outside the lock so listeners may call back into the store.
func notify(listeners []Listener, change Change) {
	for _, fn := range listeners {
		fn(change)
	}
}
