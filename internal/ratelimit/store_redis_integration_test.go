//go:build integration

package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentry/internal/ratelimit"
	"consentry/internal/sentinel"
	"consentry/pkg/requestcontext"
	"consentry/pkg/testutil"
	"consentry/pkg/testutil/containers"
)

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.GetManager().GetRedis(t)
	require.NoError(t, rc.Flush(context.Background()))
	store := ratelimit.NewRedisStore(rc.Client.Client)

	t0 := time.Now().UTC().Truncate(time.Millisecond)
	ctx := requestcontext.WithTime(context.Background(), t0)

	for i := range 3 {
		res, err := store.Allow(ctx, "gdpr:10.0.0.1", 3, time.Hour)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
	}
	res, err := store.Allow(ctx, "gdpr:10.0.0.1", 3, time.Hour)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, t0.Add(time.Hour), res.ResetAt.UTC())

	later := requestcontext.WithTime(context.Background(), t0.Add(time.Hour+time.Millisecond))
	res, err = store.Allow(later, "gdpr:10.0.0.1", 3, time.Hour)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRedisStoreConcurrentRequestsRespectLimit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.GetManager().GetRedis(t)
	require.NoError(t, rc.Flush(context.Background()))
	store := ratelimit.NewRedisStore(rc.Client.Client)
	ctx := requestcontext.WithTime(context.Background(), time.Now())

	result := testutil.RunConcurrent(20, func(int) error {
		res, err := store.Allow(ctx, "burst", 5, time.Minute)
		if err != nil {
			return err
		}
		if !res.Allowed {
			return sentinel.ErrAlreadyUsed
		}
		return nil
	})
	assert.Equal(t, int32(5), result.Successes)
	assert.Equal(t, int32(15), result.AlreadyUsed)
}
