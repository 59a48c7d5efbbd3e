package lock

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sync"
	"time"
)

// Postgres is a lock based on PostgreSQL session-level advisory locks. The
// lock is tied to a dedicated connection, so it's freed by the server if the
// process dies.
type Postgres struct {
	db    *sql.DB
	retry time.Duration
}

// NewPostgres returns a Postgres lock on db.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, retry: defaultRetryInterval}
}

// Acquire obtains the lock for key. pg_try_advisory_lock is polled instead of
// blocking in pg_advisory_lock, so that ctx can interrupt the wait.
func (l *Postgres) Acquire(ctx context.Context, key string) (func(), error) {
	lockID := hashKey(key)

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed acquiring connection for lock '%s': %w", key, err)
	}

	for {
		var acquired bool
		err = conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", lockID).Scan(&acquired)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed acquiring lock '%s': %w", key, err)
		}
		if acquired {
			break
		}

		if werr := wait(ctx, l.retry); werr != nil {
			conn.Close()
			return nil, fmt.Errorf("failed acquiring lock '%s': %w", key, werr)
		}
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", lockID)
			conn.Close()
		})
	}

	return release, nil
}

// hashKey converts key to a non-negative advisory lock ID using FNV-1a.
func hashKey(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64() & 0x7FFFFFFFFFFFFFFF) //nolint:gosec // Masked to the non-negative range.
}
