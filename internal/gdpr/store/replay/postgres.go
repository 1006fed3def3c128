package replay

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"consentry/pkg/requestcontext"
)

// Postgres is a Guard backed by the verification_token_uses table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// MarkUsed inserts key, or takes over a row whose expiry has passed. The
// conditional upsert affects no row when key is still live.
func (g *Postgres) MarkUsed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := requestcontext.Now(ctx).UTC()
	query := `
		INSERT INTO verification_token_uses (token_key, used_at, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_key) DO UPDATE SET
			used_at = EXCLUDED.used_at,
			expires_at = EXCLUDED.expires_at
		WHERE verification_token_uses.expires_at <= EXCLUDED.used_at
	`
	res, err := g.db.ExecContext(ctx, query, key, now, now.Add(ttl))
	if err != nil {
		return false, fmt.Errorf("mark token used: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark token used: %w", err)
	}
	return n == 1, nil
}

// DeleteExpired removes rows expired at now.
func (g *Postgres) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := g.db.ExecContext(ctx, `DELETE FROM verification_token_uses WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired token uses: %w", err)
	}
	return res.RowsAffected()
}
