// Package subjects looks up and deletes data subjects. The only adapter is
// an in-memory demo; a deployment plugs its user store in behind Adapter.
package subjects

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"consentry/internal/gdpr/models"
	"consentry/internal/sentinel"
	"consentry/pkg/requestcontext"
)

// Adapter is the user-data boundary of the GDPR workflow. Implementations
// return sentinel.ErrNotFound for unknown subjects.
type Adapter interface {
	FindByEmail(ctx context.Context, email string) (*models.Subject, error)
	Delete(ctx context.Context, email string) (*models.DeletionReceipt, error)
}

// DeletedCategories lists what a deletion removes.
var DeletedCategories = []string{
	"Basic data (email, name, phone)",
	"Activity and log history",
	"Preferences and settings",
	"Cookies and session data",
	"Analytics data",
	"Email marketing data",
}

// InMemory is a demo Adapter keyed by lowercased email.
type InMemory struct {
	mu       sync.RWMutex
	subjects map[string]*models.Subject
}

func NewInMemory() *InMemory {
	return &InMemory{subjects: make(map[string]*models.Subject)}
}

func key(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Put stores or replaces a subject.
func (m *InMemory) Put(s *models.Subject) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	cp.ActivityLog = append([]models.ActivityEntry(nil), s.ActivityLog...)
	m.subjects[key(s.Email)] = &cp
}

func (m *InMemory) FindByEmail(_ context.Context, email string) (*models.Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subjects[key(email)]
	if !ok {
		return nil, fmt.Errorf("subject %w", sentinel.ErrNotFound)
	}
	cp := *s
	cp.ActivityLog = append([]models.ActivityEntry(nil), s.ActivityLog...)
	return &cp, nil
}

func (m *InMemory) Delete(ctx context.Context, email string) (*models.DeletionReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(email)
	if _, ok := m.subjects[k]; !ok {
		return nil, fmt.Errorf("subject %w", sentinel.ErrNotFound)
	}
	delete(m.subjects, k)
	return &models.DeletionReceipt{
		Email:       email,
		DeletedAt:   requestcontext.Now(ctx).UTC(),
		ReferenceID: uuid.NewString(),
		Categories:  append([]string(nil), DeletedCategories...),
	}, nil
}

// Len returns the number of stored subjects.
func (m *InMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subjects)
}

// Seed loads demo subjects relative to now.
func (m *InMemory) Seed(now time.Time) {
	created := now.AddDate(-1, 0, 0)
	for _, s := range []*models.Subject{
		{
			Email:     "demo@example.com",
			Name:      "Demo User",
			Phone:     "+420 000 000 000",
			CreatedAt: created,
			LastLogin: now.Add(-2 * time.Hour),
			Activity:  models.Activity{PageViews: 42, LastVisit: now.Add(-2 * time.Hour), TotalSessions: 7},
			Preferences: models.Preferences{
				Newsletter: true,
				Language:   "en",
			},
			Consent: models.ConsentSnapshot{Analytics: true, UpdatedAt: created},
			ActivityLog: []models.ActivityEntry{
				{Action: "login", Timestamp: now.Add(-2 * time.Hour)},
				{Action: "page_view", Timestamp: now.Add(-119 * time.Minute), Details: "/services"},
				{Action: "form_submit", Timestamp: now.Add(-26 * time.Hour), Details: "contact"},
			},
		},
		{
			Email:     "jane.doe@example.com",
			Name:      "Jane Doe",
			CreatedAt: created.AddDate(0, 3, 0),
			Preferences: models.Preferences{
				Notifications: true,
				Language:      "cs",
			},
		},
	} {
		m.Put(s)
	}
}
