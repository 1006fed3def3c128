//go:build integration

// Package containers starts testcontainers fixtures for integration tests.
// Each container starts on first use and is shared by every test in the
// binary; Ryuk removes them when the process exits.
package containers

import (
	"sync"
	"testing"
)

// shared holds one lazily started container. A start that fails the test
// leaves it empty so the next caller retries.
type shared[T any] struct {
	mu sync.Mutex
	v  *T
}

func (s *shared[T]) get(t *testing.T, start func(*testing.T) *T) *T {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.v == nil {
		s.v = start(t)
	}
	return s.v
}

type Manager struct {
	postgres shared[PostgresContainer]
	redis    shared[RedisContainer]
	kafka    shared[KafkaContainer]
}

var manager Manager

// GetManager returns the process-wide container manager.
func GetManager() *Manager { return &manager }

// GetPostgres returns a Postgres with the embedded migrations applied.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	return m.postgres.get(t, NewPostgresContainer)
}

func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	return m.redis.get(t, NewRedisContainer)
}

// GetKafka returns a Kafka-compatible broker.
func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	t.Helper()
	return m.kafka.get(t, NewKafkaContainer)
}
