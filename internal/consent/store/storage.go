package store

import (
	"errors"
	"fmt"
	"sync"

	"consentry/internal/sentinel"
)

// Storage mirrors browser key/value storage. ok is false when key is absent.
type Storage interface {
	GetItem(key string) (value string, ok bool, err error)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

// ErrQuotaExceeded is returned by QuotaStorage when a write would not fit.
var ErrQuotaExceeded = fmt.Errorf("storage quota exceeded: %w", sentinel.ErrUnavailable)

// MemoryStorage is a Storage held in process memory.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

func (m *MemoryStorage) GetItem(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *MemoryStorage) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *MemoryStorage) RemoveItem(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// QuotaStorage limits the total size (keys plus values) of an underlying
// MemoryStorage, like a browser origin quota.
type QuotaStorage struct {
	*MemoryStorage
	MaxBytes int
}

func NewQuotaStorage(maxBytes int) *QuotaStorage {
	return &QuotaStorage{MemoryStorage: NewMemoryStorage(), MaxBytes: maxBytes}
}

func (q *QuotaStorage) SetItem(key, value string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	used := 0
	for k, v := range q.items {
		if k == key {
			continue
		}
		used += len(k) + len(v)
	}
	if used+len(key)+len(value) > q.MaxBytes {
		return ErrQuotaExceeded
	}
	q.items[key] = value
	return nil
}

// FailingStorage fails every operation, as when storage is disabled.
type FailingStorage struct {
	Err error
}

func (f FailingStorage) err() error {
	if f.Err != nil {
		return f.Err
	}
	return errors.New("storage disabled")
}

func (f FailingStorage) GetItem(string) (string, bool, error) { return "", false, f.err() }
func (f FailingStorage) SetItem(string, string) error         { return f.err() }
func (f FailingStorage) RemoveItem(string) error              { return f.err() }
