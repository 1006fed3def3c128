package replay

import (
	"context"
	"sync"
	"time"

	"consentry/pkg/requestcontext"
)

// InMemory is a Guard for a single process.
type InMemory struct {
	mu   sync.Mutex
	used map[string]time.Time // key -> expiry
	stop chan struct{}
	once sync.Once
}

// NewInMemory starts a sweeper that drops expired keys every interval.
func NewInMemory(interval time.Duration) *InMemory {
	g := &InMemory{
		used: make(map[string]time.Time),
		stop: make(chan struct{}),
	}
	if interval > 0 {
		go g.sweepEvery(interval)
	}
	return g
}

func (g *InMemory) MarkUsed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := requestcontext.Now(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()
	if expiry, ok := g.used[key]; ok && now.Before(expiry) {
		return false, nil
	}
	g.used[key] = now.Add(ttl)
	return true, nil
}

// Sweep removes keys expired at now.
func (g *InMemory) Sweep(now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	removed := 0
	for key, expiry := range g.used {
		if !now.Before(expiry) {
			delete(g.used, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (g *InMemory) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.used)
}

// Close stops the sweeper.
func (g *InMemory) Close() {
	g.once.Do(func() { close(g.stop) })
}

func (g *InMemory) sweepEvery(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-g.stop:
			return
		case now := <-ticker.C:
			g.Sweep(now)
		}
	}
}
