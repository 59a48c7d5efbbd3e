// Package lock provides named mutual-exclusion locks that serialize migration
// runs, within a single process or across processes sharing a database or a
// Redis server.
//
// All implementations share the same contract: Acquire blocks until the lock
// is obtained or the context is done, and the returned release function frees
// the lock. Calling release more than once is harmless.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// defaultRetryInterval is how often polling implementations retry acquiring a
// lock that is held by someone else.
const defaultRetryInterval = 100 * time.Millisecond

// Local is an in-process lock. The zero value is not usable, use NewLocal.
type Local struct {
	mx   sync.Mutex
	held map[string]chan struct{}
}

// NewLocal returns a new Local lock.
func NewLocal() *Local {
	return &Local{held: map[string]chan struct{}{}}
}

// Acquire obtains the lock for key.
func (l *Local) Acquire(ctx context.Context, key string) (func(), error) {
	for {
		l.mx.Lock()
		ch, ok := l.held[key]
		if !ok {
			ch = make(chan struct{})
			l.held[key] = ch
			l.mx.Unlock()

			var once sync.Once
			return func() {
				once.Do(func() {
					l.mx.Lock()
					delete(l.held, key)
					l.mx.Unlock()
					close(ch)
				})
			}, nil
		}
		l.mx.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, fmt.Errorf("failed acquiring lock '%s': %w", key, ctx.Err())
		}
	}
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
