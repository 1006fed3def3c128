package replay

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentry/pkg/requestcontext"
)

func TestInMemory_SingleUse(t *testing.T) {
	g := NewInMemory(0)
	defer g.Close()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	first, err := g.MarkUsed(ctx, "sig-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := g.MarkUsed(ctx, "sig-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, second)

	other, err := g.MarkUsed(ctx, "sig-2", time.Hour)
	require.NoError(t, err)
	assert.True(t, other)
}

func TestInMemory_ExpiredKeyIsReusable(t *testing.T) {
	g := NewInMemory(0)
	defer g.Close()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	ok, _ := g.MarkUsed(requestcontext.WithTime(context.Background(), now), "sig", time.Minute)
	require.True(t, ok)

	ok, _ = g.MarkUsed(requestcontext.WithTime(context.Background(), now.Add(2*time.Minute)), "sig", time.Minute)
	assert.True(t, ok)
}

func TestInMemory_Sweep(t *testing.T) {
	g := NewInMemory(0)
	defer g.Close()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	_, _ = g.MarkUsed(ctx, "short", time.Minute)
	_, _ = g.MarkUsed(ctx, "long", time.Hour)
	assert.Equal(t, 1, g.Sweep(now.Add(30*time.Minute)))
	assert.Equal(t, 1, g.Len())
}

func TestInMemory_ConcurrentMarkUsedOneWinner(t *testing.T) {
	g := NewInMemory(0)
	defer g.Close()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := g.MarkUsed(context.Background(), "race", time.Hour); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
