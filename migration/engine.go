package migration

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/nrednav/cuid2"

	"go.hackfix.me/sqlmgr/lock"
	"go.hackfix.me/sqlmgr/state"
)

// Defaults for engine options.
const (
	DefaultLockKey     = "sqlmgr.migrations"
	DefaultLockTimeout = 5 * time.Second
)

// defaultLocker serializes runs of all engines in this process that aren't
// configured with a Locker.
var defaultLocker = lock.NewLocal()

// StateStore persists the applied migration IDs and the audit log. It's
// implemented by *state.Store.
type StateStore interface {
	Applied(ctx context.Context) ([]string, error)
	SetApplied(ctx context.Context, ids []string) error
	AppendLog(ctx context.Context, entries ...state.Entry) error
	LogTail(ctx context.Context, n int) ([]state.Entry, error)
	ClearLog(ctx context.Context) error
}

// Locker provides mutual exclusion between engine runs. Acquire blocks until
// the lock for key is obtained or ctx is done. The lock is held until release
// is called, independently of ctx.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Engine applies and rolls back migrations.
type Engine struct {
	registry    *Registry
	store       StateStore
	conn        Conn
	locker      Locker
	lockKey     string
	lockTimeout time.Duration
	stmtTimeout time.Duration
	observers   []Observer
	logger      *slog.Logger
	timeNow     func() time.Time
}

// New returns an Engine that discovers migrations with registry, runs them
// against conn, and records state in store.
func New(registry *Registry, store StateStore, conn Conn, opts ...Option) *Engine {
	e := &Engine{
		registry:    registry,
		store:       store,
		conn:        conn,
		locker:      defaultLocker,
		lockKey:     DefaultLockKey,
		lockTimeout: DefaultLockTimeout,
		logger:      slog.Default(),
		timeNow:     time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.logger = e.logger.With("component", "migration")

	return e
}

// Discover returns the migrations currently known to the registry.
func (e *Engine) Discover() (*Catalog, error) {
	return e.registry.Discover()
}

// Applied returns the IDs of applied migrations in the order they were
// applied.
func (e *Engine) Applied(ctx context.Context) ([]string, error) {
	return e.store.Applied(ctx) //nolint:wrapcheck // Already wrapped by the store.
}

// LogTail returns the last n audit log entries. If n < 1 all entries are
// returned.
func (e *Engine) LogTail(ctx context.Context, n int) ([]state.Entry, error) {
	return e.store.LogTail(ctx, n) //nolint:wrapcheck // Already wrapped by the store.
}

// ClearLog removes all audit log entries.
func (e *Engine) ClearLog(ctx context.Context) error {
	return e.store.ClearLog(ctx) //nolint:wrapcheck // Already wrapped by the store.
}

// MigrationStatus is a discovered migration and whether it's applied.
type MigrationStatus struct {
	Migration
	Applied bool
}

// Overview is a snapshot of all known migrations.
type Overview struct {
	// Migrations sorted by ID.
	Migrations []MigrationStatus
	// Applied IDs in the order they were applied. This may include IDs that
	// are no longer discovered.
	Applied []string
	Skipped []Skipped
}

// Status discovers migrations and reports which of them are applied.
func (e *Engine) Status(ctx context.Context) (*Overview, error) {
	cat, err := e.registry.Discover()
	if err != nil {
		return nil, err
	}
	applied, err := e.store.Applied(ctx)
	if err != nil {
		return nil, err //nolint:wrapcheck // Already wrapped by the store.
	}
	appliedSet := toSet(applied)

	ov := &Overview{
		Migrations: make([]MigrationStatus, 0, len(cat.Migrations)),
		Applied:    applied,
		Skipped:    cat.Skipped,
	}
	for _, m := range cat.Migrations {
		_, ok := appliedSet[m.ID]
		ov.Migrations = append(ov.Migrations, MigrationStatus{Migration: m, Applied: ok})
	}

	return ov, nil
}

// Apply executes the up step of pending migrations. If ids is empty, all
// pending migrations are applied, otherwise only the pending ones among ids.
// Migrations run in dependency order, and a selected migration can only be
// applied if each of its dependencies is either applied or selected.
//
// Each migration is recorded as applied as soon as its step succeeds. The
// first failure stops the run, and the returned error identifies the failed
// migration. In a dry run no SQL is executed and no state is changed, and the
// statements that would run are written to the audit log instead.
//
// Having nothing to apply is not an error. A selection that contains an
// empty ID fails with ErrInvalidSelection.
func (e *Engine) Apply(ctx context.Context, ids []string, dryRun bool) (*Report, error) {
	return e.run(ctx, OpApply, ids, dryRun)
}

// Rollback executes the down step of the selected migrations that are
// applied, and records them as not applied. Migrations are rolled back in the
// reverse order of the selection, except that a selected migration is always
// rolled back before the selected migrations it depends on. A migration
// without a down step is skipped and stays applied. Rolling back a migration
// fails with ErrDependentsApplied while another applied migration depends on
// it.
//
// An empty selection fails with ErrNoSelection, and one that contains an empty
// ID with ErrInvalidSelection.
func (e *Engine) Rollback(ctx context.Context, ids []string, dryRun bool) (*Report, error) {
	return e.run(ctx, OpRollback, ids, dryRun)
}

func (e *Engine) run(ctx context.Context, op Operation, ids []string, dryRun bool) (*Report, error) {
	rep := &Report{
		RunID:     cuid2.Generate(),
		Operation: op,
		DryRun:    dryRun,
		Selected:  dedup(ids),
		Started:   e.timeNow(),
	}
	j := e.newJournal(rep)
	defer j.flush(ctx)

	if slices.ContainsFunc(ids, isBlank) {
		err := &Error{Code: CodeInvalidSelection}
		j.add(state.LevelError, "Run failed", "code", err.Code, "error", err)
		rep.Finished = e.timeNow()
		return rep, err
	}

	if op == OpRollback && len(rep.Selected) == 0 {
		err := &Error{Code: CodeNoSelection}
		j.add(state.LevelError, "Rollback failed", "code", err.Code, "error", err)
		rep.Finished = e.timeNow()
		return rep, err
	}

	release, err := e.acquire(ctx)
	if err != nil {
		j.add(state.LevelError, "Failed acquiring the migration lock", "code", CodeOf(err), "error", err)
		rep.Finished = e.timeNow()
		return rep, err
	}
	defer release()

	for _, o := range e.observers {
		o.RunStarted(ctx, rep)
	}

	switch op {
	case OpApply:
		err = e.apply(ctx, j, rep)
	case OpRollback:
		err = e.rollback(ctx, j, rep)
	default:
		err = fmt.Errorf("unknown operation '%s'", op)
	}
	rep.Finished = e.timeNow()

	// Flush before notifying, so that observers see the complete log.
	j.flush(ctx)

	for _, o := range e.observers {
		o.RunFinished(ctx, rep, err)
	}

	return rep, err
}

func (e *Engine) acquire(ctx context.Context) (func(), error) {
	lctx, cancel := context.WithTimeout(ctx, e.lockTimeout)
	defer cancel()

	release, err := e.locker.Acquire(lctx, e.lockKey)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err() //nolint:wrapcheck // Returned as is on cancellation.
		}
		return nil, &Error{Code: CodeLocked, Err: err}
	}

	return release, nil
}

func (e *Engine) discover(j *journal) (*Catalog, error) {
	cat, err := e.registry.Discover()
	if err != nil {
		j.add(state.LevelError, "Migration discovery failed", "error", err)
		return nil, err
	}

	for _, s := range cat.Skipped {
		j.add(state.LevelWarn, "Skipped invalid migration definition",
			"path", s.Path, "id", s.ID, "error", s.Err)
	}
	for _, r := range cat.Redefinition {
		j.add(state.LevelWarn, "Migration redefined",
			"id", r.ID, "previous", r.Previous, "current", r.Current)
	}

	return cat, nil
}

func (e *Engine) apply(ctx context.Context, j *journal, rep *Report) error {
	cat, err := e.discover(j)
	if err != nil {
		return err
	}

	applied, err := e.store.Applied(ctx)
	if err != nil {
		j.add(state.LevelError, "Failed loading applied migrations", "error", err)
		return err //nolint:wrapcheck // Already wrapped by the store.
	}
	appliedSet := toSet(applied)

	selected := toSet(rep.Selected)
	for _, id := range rep.Selected {
		if _, ok := cat.Get(id); !ok {
			j.add(state.LevelWarn, "Ignoring unknown migration", "id", id)
		}
	}

	var targets []string
	for _, m := range cat.Migrations {
		if _, ok := selected[m.ID]; len(selected) > 0 && !ok {
			continue
		}
		if _, ok := appliedSet[m.ID]; ok {
			continue
		}
		targets = append(targets, m.ID)
	}
	if len(targets) == 0 {
		j.add(state.LevelInfo, "No pending migrations to apply.")
		return nil
	}

	order, err := Order(targets, cat.Map())
	if err != nil {
		j.add(state.LevelError, "Dependency resolution failed", errAttrs(err)...)
		return err
	}

	targetSet := toSet(targets)
	plan := make([]string, 0, len(targets))
	for _, id := range order {
		if _, ok := targetSet[id]; !ok {
			continue
		}
		m, _ := cat.Get(id)
		for _, dep := range m.Depends {
			_, isApplied := appliedSet[dep]
			_, isTarget := targetSet[dep]
			if !isApplied && !isTarget {
				err = &Error{Code: CodeUnappliedDependency, ID: id, Related: dep}
				j.add(state.LevelError, "Apply failed "+id, errAttrs(err)...)
				return err
			}
		}
		plan = append(plan, id)
	}
	rep.Targets = plan

	// State writes must not be interrupted once a migration has committed.
	sctx := context.WithoutCancel(ctx)
	for _, id := range plan {
		if err = ctx.Err(); err != nil {
			j.add(state.LevelWarn, "Run cancelled", "next", id, "error", err)
			return err //nolint:wrapcheck // Returned as is on cancellation.
		}

		m, _ := cat.Get(id)
		j.add(state.LevelInfo, fmt.Sprintf("Applying %s - %s", id, m.Label()), "id", id)
		if err = e.runStep(ctx, j, rep, m, "up", m.Up); err != nil {
			rep.Failed = id
			j.add(state.LevelError, "Apply failed "+id, errAttrs(err)...)
			return err
		}
		rep.Executed = append(rep.Executed, id)

		if !rep.DryRun {
			applied = append(applied, id)
			if err = e.store.SetApplied(sctx, applied); err != nil {
				rep.Failed = id
				j.add(state.LevelError, "Failed recording applied migration", "id", id, "error", err)
				return err //nolint:wrapcheck // Already wrapped by the store.
			}
			j.add(state.LevelInfo, "Applied "+id, "id", id)
		}
		j.flush(sctx)
	}

	return nil
}

func (e *Engine) rollback(ctx context.Context, j *journal, rep *Report) error {
	cat, err := e.discover(j)
	if err != nil {
		return err
	}

	applied, err := e.store.Applied(ctx)
	if err != nil {
		j.add(state.LevelError, "Failed loading applied migrations", "error", err)
		return err //nolint:wrapcheck // Already wrapped by the store.
	}
	appliedSet := toSet(applied)

	var targets []string
	for _, id := range rep.Selected {
		if _, ok := appliedSet[id]; !ok {
			continue
		}
		if _, ok := cat.Get(id); !ok {
			continue
		}
		targets = append(targets, id)
	}
	if len(targets) == 0 {
		j.add(state.LevelInfo, "No applicable migrations to rollback.")
		return nil
	}

	order := rollbackOrder(targets, cat.Map())

	// Check the whole run upfront, so that it fails before anything is
	// rolled back.
	remaining := toSet(applied)
	for _, id := range order {
		m, _ := cat.Get(id)
		if !m.Reversible() {
			continue
		}
		if dep := appliedDependent(id, remaining, cat); dep != "" {
			err = &Error{Code: CodeDependentsApplied, ID: id, Related: dep}
			j.add(state.LevelError, "Rollback failed "+id, errAttrs(err)...)
			return err
		}
		delete(remaining, id)
	}
	rep.Targets = order

	sctx := context.WithoutCancel(ctx)
	for _, id := range order {
		if err = ctx.Err(); err != nil {
			j.add(state.LevelWarn, "Run cancelled", "next", id, "error", err)
			return err //nolint:wrapcheck // Returned as is on cancellation.
		}

		m, _ := cat.Get(id)
		j.add(state.LevelInfo, fmt.Sprintf("Rolling back %s - %s", id, m.Label()), "id", id)
		if !m.Reversible() {
			j.add(state.LevelWarn, "No down step defined, skipped.", "id", id)
			rep.Skipped = append(rep.Skipped, id)
			continue
		}

		if err = e.runStep(ctx, j, rep, m, "down", m.Down); err != nil {
			rep.Failed = id
			j.add(state.LevelError, "Rollback failed "+id, errAttrs(err)...)
			return err
		}
		rep.Executed = append(rep.Executed, id)

		if !rep.DryRun {
			applied = slices.DeleteFunc(applied, func(a string) bool { return a == id })
			if err = e.store.SetApplied(sctx, applied); err != nil {
				rep.Failed = id
				j.add(state.LevelError, "Failed recording rolled back migration", "id", id, "error", err)
				return err //nolint:wrapcheck // Already wrapped by the store.
			}
			j.add(state.LevelInfo, "Rolled back "+id, "id", id)
		}
		j.flush(sctx)
	}

	return nil
}

// appliedDependent returns the ID of a migration in applied that directly
// depends on id, or an empty string if there is none.
func appliedDependent(id string, applied map[string]struct{}, cat *Catalog) string {
	for _, m := range cat.Migrations {
		if _, ok := applied[m.ID]; !ok || m.ID == id {
			continue
		}
		if slices.Contains(m.Depends, id) {
			return m.ID
		}
	}
	return ""
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func isBlank(id string) bool {
	return strings.TrimSpace(id) == ""
}

func dedup(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
