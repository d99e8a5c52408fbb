package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"pimsync_api/internal/syncerr"
)

// PostgresLock stores the import mutex as a row with an explicit expiry.
type PostgresLock struct {
	db   *sql.DB
	name string
}

func NewPostgresLock(db *sql.DB, name string) *PostgresLock {
	return &PostgresLock{db: db, name: name}
}

func (l *PostgresLock) Acquire(ctx context.Context, owner string, ttl time.Duration) (bool, error) {
	var got string
	err := l.db.QueryRowContext(ctx, `
		INSERT INTO pimsync.import_locks (name, owner, expires_at)
		VALUES ($1, $2, now() + $3::bigint * interval '1 millisecond')
		ON CONFLICT (name) DO UPDATE
		SET owner = EXCLUDED.owner, expires_at = EXCLUDED.expires_at
		WHERE pimsync.import_locks.expires_at < now() OR pimsync.import_locks.owner = EXCLUDED.owner
		RETURNING owner`, l.name, owner, ttl.Milliseconds()).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, syncerr.Store("lock-acquire", "failed to acquire import lock", err)
	}
	return got == owner, nil
}

func (l *PostgresLock) Refresh(ctx context.Context, owner string, ttl time.Duration) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE pimsync.import_locks SET expires_at = now() + $3::bigint * interval '1 millisecond'
		WHERE name = $1 AND owner = $2`, l.name, owner, ttl.Milliseconds())
	if err != nil {
		return syncerr.Store("lock-refresh", "failed to refresh import lock", err)
	}
	return nil
}

func (l *PostgresLock) Release(ctx context.Context, owner string) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM pimsync.import_locks WHERE name = $1 AND owner = $2`, l.name, owner)
	if err != nil {
		return syncerr.Store("lock-release", "failed to release import lock", err)
	}
	return nil
}

func (l *PostgresLock) Active(ctx context.Context) (bool, error) {
	var active bool
	err := l.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM pimsync.import_locks WHERE name = $1 AND expires_at >= now())`, l.name).Scan(&active)
	if err != nil {
		return false, syncerr.Store("lock-check", "failed to check import lock", err)
	}
	return active, nil
}
