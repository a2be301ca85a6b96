package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PG is a PostgreSQL-backed limiter with sliding window and lockout.
type PG struct {
	pool pgxQuerier
	p    Policy
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPG constructs a PostgreSQL-backed limiter on a pool or transaction.
func NewPG(q pgxQuerier, p Policy) *PG {
	return &PG{pool: q, p: p}
}

// Allow reports whether the peer is currently allowed and a retry-after duration.
func (l *PG) Allow(ctx context.Context, peerHash []byte) (bool, time.Duration, error) {
	const q = `SELECT blocked_until FROM auth_failures WHERE peer_hash=$1`
	var blockedUntil time.Time
	err := l.pool.QueryRow(ctx, q, peerHash).Scan(&blockedUntil)
	switch {
	case err == nil:
		if blockedUntil.After(time.Now()) {
			return false, time.Until(blockedUntil), nil
		}
		return true, 0, nil
	case errors.Is(err, pgx.ErrNoRows):
		return true, 0, nil
	default:
		return false, 0, err
	}
}

// Failure records a failed attempt; may set a block until a future time.
func (l *PG) Failure(ctx context.Context, peerHash []byte) (bool, time.Duration, error) {
	now := time.Now()

	const q = `
INSERT INTO auth_failures (peer_hash, fail_count, blocked_until, updated_at)
VALUES ($1,1,'epoch',now())
ON CONFLICT (peer_hash) DO UPDATE
SET
  fail_count = CASE WHEN EXCLUDED.updated_at - auth_failures.updated_at > $2::interval THEN 1 ELSE auth_failures.fail_count + 1 END,
  updated_at = now()
RETURNING fail_count`
	var fails int
	if err := l.pool.QueryRow(ctx, q, peerHash, l.p.Window).Scan(&fails); err != nil {
		return false, 0, err
	}
	if fails >= l.p.MaxFails {
		blockUntil := now.Add(l.p.BlockFor)
		const upd = `UPDATE auth_failures SET blocked_until=$2 WHERE peer_hash=$1`
		if _, err := l.pool.Exec(ctx, upd, peerHash, blockUntil); err != nil {
			return false, 0, err
		}
		return true, l.p.BlockFor, nil
	}
	return false, 0, nil
}
