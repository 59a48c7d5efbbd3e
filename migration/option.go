package migration

import (
	"log/slog"
	"time"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLocker sets the lock used to serialize engine runs. The default is an
// in-process lock shared by all engines that don't set one.
func WithLocker(l Locker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithLockKey sets the name of the lock held during runs.
func WithLockKey(key string) Option {
	return func(e *Engine) {
		e.lockKey = key
	}
}

// WithLockTimeout sets how long a run waits to acquire the lock before
// failing with ErrLocked.
func WithLockTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.lockTimeout = d
	}
}

// WithStatementTimeout sets the maximum execution time of a single SQL
// statement. Zero disables the timeout.
func WithStatementTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.stmtTimeout = d
	}
}

// WithObserver adds observers that are notified of every run.
func WithObserver(obs ...Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, obs...)
	}
}

// WithLogger sets the logger audit entries are mirrored to.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTimeNow sets the function used to timestamp audit entries and reports.
func WithTimeNow(timeNowFn func() time.Time) Option {
	return func(e *Engine) {
		e.timeNow = timeNowFn
	}
}
