package lock

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/nrednav/cuid2"

	dbtypes "go.hackfix.me/sqlmgr/db/types"
)

// DefaultTableTTL is how long a table lock stays valid if its holder stops
// refreshing it, e.g. because the process crashed. Held locks are refreshed at
// half this interval.
const DefaultTableTTL = 30 * time.Second

const createLocksTable = `CREATE TABLE IF NOT EXISTS _locks (
	name       TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	expires_at BIGINT NOT NULL
)`

// Table is a lock stored as a row in the _locks table of the database, which
// makes it work across processes for any supported dialect. The holder keeps
// extending the expiration time while the lock is held, and a lock whose
// expiration time has passed is considered free.
type Table struct {
	db      *sql.DB
	dialect dbtypes.Dialect
	ttl     time.Duration
	retry   time.Duration
	timeNow func() time.Time
}

// TableOption configures a Table lock.
type TableOption func(*Table)

// WithTableTTL sets the lock expiration time.
func WithTableTTL(ttl time.Duration) TableOption {
	return func(t *Table) {
		t.ttl = ttl
	}
}

// WithTableRetry sets how often acquisition is retried while the lock is held
// by someone else.
func WithTableRetry(d time.Duration) TableOption {
	return func(t *Table) {
		t.retry = d
	}
}

// WithTableTimeNow sets the function used to retrieve the current time.
func WithTableTimeNow(timeNowFn func() time.Time) TableOption {
	return func(t *Table) {
		t.timeNow = timeNowFn
	}
}

// NewTable returns a Table lock on db, creating the _locks table if needed.
func NewTable(ctx context.Context, db *sql.DB, dialect dbtypes.Dialect, opts ...TableOption) (*Table, error) {
	t := &Table{
		db:      db,
		dialect: dialect,
		ttl:     DefaultTableTTL,
		retry:   defaultRetryInterval,
		timeNow: time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}

	if _, err := db.ExecContext(ctx, createLocksTable); err != nil {
		return nil, fmt.Errorf("failed creating locks table: %w", err)
	}

	return t, nil
}

// Acquire obtains the lock for key.
func (t *Table) Acquire(ctx context.Context, key string) (func(), error) {
	owner := cuid2.Generate()
	query := t.dialect.Rebind(`INSERT INTO _locks (name, owner, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET owner = excluded.owner, expires_at = excluded.expires_at
		WHERE _locks.expires_at < ?`)

	for {
		now := t.timeNow()
		res, err := t.db.ExecContext(ctx, query, key, owner, now.Add(t.ttl).UnixMilli(), now.UnixMilli())
		if err != nil && !dbtypes.IsBusy(err) {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("failed acquiring lock '%s': %w", key, ctx.Err())
			}
			return nil, fmt.Errorf("failed acquiring lock '%s': %w", key, err)
		}
		if err == nil {
			if n, _ := res.RowsAffected(); n == 1 {
				break
			}
		}

		if werr := wait(ctx, t.retry); werr != nil {
			return nil, fmt.Errorf("failed acquiring lock '%s': %w", key, werr)
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go t.refresh(key, owner, stop, done)

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			<-done
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			_, _ = t.db.ExecContext(ctx,
				t.dialect.Rebind(`DELETE FROM _locks WHERE name = ? AND owner = ?`), key, owner)
		})
	}

	return release, nil
}

// refresh extends the expiration time of the lock row until stop is closed.
// Nothing is updated once the row belongs to another owner.
func (t *Table) refresh(key, owner string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := t.ttl / 2
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	query := t.dialect.Rebind(`UPDATE _locks SET expires_at = ? WHERE name = ? AND owner = ?`)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			_, _ = t.db.ExecContext(ctx, query, t.timeNow().Add(t.ttl).UnixMilli(), key, owner)
			cancel()
		}
	}
}
