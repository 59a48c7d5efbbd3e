// Package state persists the set of applied migrations and a capped audit log
// on top of a simple key-value Backend.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// Keys used to store state in a Backend.
const (
	KeyApplied = "sqlmgr_applied"
	KeyLog     = "sqlmgr_log"
)

// DefaultLogCap is the default maximum number of retained log entries.
const DefaultLogCap = 200

// Backend is a durable key-value store. Get returns a nil value and no error
// if the key doesn't exist.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Level is the severity of a log entry.
type Level string

// Log levels.
const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// ParseLevel returns the level with the given case-insensitive name.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToUpper(s)); l {
	case LevelInfo, LevelWarn, LevelError:
		return l, nil
	case "WARNING":
		return LevelWarn, nil
	default:
		return "", fmt.Errorf("invalid log level '%s'", s)
	}
}

// SlogLevel returns the equivalent slog level.
func (l Level) SlogLevel() slog.Level {
	switch l {
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Entry is an audit log record.
type Entry struct {
	Time    time.Time      `json:"time"`
	Level   Level          `json:"level"`
	Message string         `json:"msg"`
	Context map[string]any `json:"ctx,omitempty"`
}

// Store keeps the applied migration IDs and the audit log in a Backend.
//
// Each method performs a single read-modify-write of one key, serialized
// within the Store. Serializing whole migration runs across processes is the
// responsibility of the caller.
type Store struct {
	backend Backend
	logCap  int
	mx      sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogCap sets the maximum number of log entries retained by the store.
// Values below 1 are ignored.
func WithLogCap(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.logCap = n
		}
	}
}

// New returns a new Store on top of backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{backend: backend, logCap: DefaultLogCap}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// LogCap returns the maximum number of retained log entries.
func (s *Store) LogCap() int {
	return s.logCap
}

// Applied returns the IDs of applied migrations, in the order they were
// applied.
func (s *Store) Applied(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.load(ctx, KeyApplied, &ids); err != nil {
		return nil, fmt.Errorf("failed loading applied migrations: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}

	return ids, nil
}

// SetApplied replaces the list of applied migration IDs. Duplicates are
// removed, keeping the first occurrence.
func (s *Store) SetApplied(ctx context.Context, ids []string) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	seen := make(map[string]struct{}, len(ids))
	uniq := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}

	if err := s.save(ctx, KeyApplied, uniq); err != nil {
		return fmt.Errorf("failed saving applied migrations: %w", err)
	}

	return nil
}

// AppendLog appends entries to the log, evicting the oldest entries beyond the
// log cap.
func (s *Store) AppendLog(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mx.Lock()
	defer s.mx.Unlock()

	var log []Entry
	if err := s.load(ctx, KeyLog, &log); err != nil {
		return fmt.Errorf("failed loading log: %w", err)
	}
	log = append(log, entries...)
	if len(log) > s.logCap {
		log = slices.Clone(log[len(log)-s.logCap:])
	}

	if err := s.save(ctx, KeyLog, log); err != nil {
		return fmt.Errorf("failed saving log: %w", err)
	}

	return nil
}

// LogTail returns the last n log entries in chronological order. If n < 1 all
// entries are returned.
func (s *Store) LogTail(ctx context.Context, n int) ([]Entry, error) {
	var log []Entry
	if err := s.load(ctx, KeyLog, &log); err != nil {
		return nil, fmt.Errorf("failed loading log: %w", err)
	}
	if n > 0 && len(log) > n {
		log = log[len(log)-n:]
	}
	if log == nil {
		log = []Entry{}
	}

	return log, nil
}

// ClearLog removes all log entries.
func (s *Store) ClearLog(ctx context.Context) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	if err := s.save(ctx, KeyLog, []Entry{}); err != nil {
		return fmt.Errorf("failed clearing log: %w", err)
	}

	return nil
}

func (s *Store) load(ctx context.Context, key string, v any) error {
	data, err := s.backend.Get(ctx, key)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	if err = json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed decoding value of '%s': %w", key, err)
	}

	return nil
}

func (s *Store) save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed encoding value of '%s': %w", key, err)
	}

	return s.backend.Set(ctx, key, data)
}
