package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"consentry/internal/gdpr/store/replay"
	"consentry/internal/ratelimit"
	"consentry/internal/platform/config"
	"consentry/internal/platform/database"
	"consentry/internal/platform/health"
	redisclient "consentry/internal/platform/redis"
	"consentry/migrations"
)

const (
	memorySweepInterval   = time.Minute
	postgresSweepInterval = 10 * time.Minute
)

// replayBackend is the chosen replay guard plus its lifecycle hooks.
type replayBackend struct {
	name  string
	guard replay.Guard
	check health.CheckFunc
	// rates is set when the backend can also hold shared rate limit counters.
	rates ratelimit.Store
	// sweep runs until ctx is done; nil when the backend expires keys itself.
	sweep func(ctx context.Context) error
	close func()
}

// newReplayBackend prefers Redis, then Postgres, then process memory.
func newReplayBackend(ctx context.Context, cfg config.Server, log *slog.Logger) (*replayBackend, error) {
	if cfg.Redis.URL != "" {
		client, err := redisclient.New(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		prometheus.MustRegister(redisclient.NewPoolCollector(client))
		return &replayBackend{
			name:  "redis",
			guard: replay.NewRedis(client.Client),
			check: client.Health,
			rates: ratelimit.NewRedisStore(client.Client),
			close: func() { _ = client.Close() }, //nolint:errcheck // shutdown
		}, nil
	}

	if cfg.Database.URL != "" {
		pool, err := database.New(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := pool.Migrate(ctx, migrations.FS); err != nil {
			_ = pool.Close() //nolint:errcheck // init failure
			return nil, err
		}
		prometheus.MustRegister(pool.Collector())
		guard := replay.NewPostgres(pool.DB())
		return &replayBackend{
			name:  "postgres",
			guard: guard,
			check: pool.Health,
			sweep: func(ctx context.Context) error {
				tick := time.NewTicker(postgresSweepInterval)
				defer tick.Stop()
				for {
					select {
					case <-ctx.Done():
						return nil
					case now := <-tick.C:
						n, err := guard.DeleteExpired(ctx, now)
						if err != nil {
							log.WarnContext(ctx, "failed to sweep used tokens", "error", err)
							continue
						}
						if n > 0 {
							log.DebugContext(ctx, "swept used tokens", "count", n)
						}
					}
				}
			},
			close: func() { _ = pool.Close() }, //nolint:errcheck // shutdown
		}, nil
	}

	guard := replay.NewInMemory(memorySweepInterval)
	return &replayBackend{
		name:  "memory",
		guard: guard,
		close: guard.Close,
	}, nil
}
