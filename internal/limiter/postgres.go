package limiter

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PG is a PostgreSQL-backed ledger with a sliding failure window and a
// persistent device-ban set.
type PG struct {
	pool     pgxQuerier
	window   time.Duration
	maxFails int
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPG constructs a PostgreSQL-backed ledger.
func NewPG(pool *pgxpool.Pool, window time.Duration, maxFails int) *PG {
	return &PG{pool: pool, window: window, maxFails: maxFails}
}

// NewPGWithQuerier constructs a ledger over any pgx querier (used in tests).
func NewPGWithQuerier(q pgxQuerier, window time.Duration, maxFails int) *PG {
	return &PG{pool: q, window: window, maxFails: maxFails}
}

// Allow reports whether the source is under the failure threshold within the
// sliding window. Attempts are allowed while fail_count <= maxFails.
func (l *PG) Allow(ctx context.Context, ipHash []byte) (bool, error) {
	const q = `SELECT fail_count, updated_at FROM access_limiter WHERE ip_hash=$1`
	var fails int
	var updatedAt time.Time
	err := l.pool.QueryRow(ctx, q, ipHash).Scan(&fails, &updatedAt)
	switch err {
	case nil:
		if time.Since(updatedAt) > l.window {
			return true, nil
		}
		return fails <= l.maxFails, nil
	case pgx.ErrNoRows:
		return true, nil
	default:
		return false, err
	}
}

// Failure records a failed attempt, restarting the count when the previous
// failure fell outside the window.
func (l *PG) Failure(ctx context.Context, ipHash []byte) error {
	const q = `
INSERT INTO access_limiter (ip_hash, fail_count, updated_at)
VALUES ($1,1,now())
ON CONFLICT (ip_hash) DO UPDATE
SET
  fail_count = CASE WHEN EXCLUDED.updated_at - access_limiter.updated_at > $2::interval THEN 1 ELSE access_limiter.fail_count + 1 END,
  updated_at = now()`
	_, err := l.pool.Exec(ctx, q, ipHash, l.window)
	return err
}

// IsBanned reports whether the fingerprint hash is in the ban set.
func (l *PG) IsBanned(ctx context.Context, fpHash []byte) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM banned_devices WHERE fp_hash=$1)`
	var banned bool
	if err := l.pool.QueryRow(ctx, q, fpHash).Scan(&banned); err != nil {
		return false, err
	}
	return banned, nil
}

// Ban inserts the fingerprint hash into the ban set. Re-banning is a no-op.
func (l *PG) Ban(ctx context.Context, fpHash []byte, reason string) error {
	const q = `
INSERT INTO banned_devices (fp_hash, reason, created_at)
VALUES ($1,$2,now())
ON CONFLICT (fp_hash) DO NOTHING`
	_, err := l.pool.Exec(ctx, q, fpHash, reason)
	return err
}
