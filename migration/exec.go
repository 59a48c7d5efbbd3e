package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mandelsoft/vfs/pkg/vfs"

	"go.hackfix.me/sqlmgr/sqlsplit"
	"go.hackfix.me/sqlmgr/state"
)

// runStep executes step of migration m, and notifies step observers.
func (e *Engine) runStep(
	ctx context.Context, j *journal, rep *Report, m Migration, direction string, step Step,
) error {
	start := time.Now()
	err := e.execStep(ctx, j, rep.DryRun, m, strings.ToUpper(direction), step)
	if !rep.DryRun {
		elapsed := time.Since(start)
		for _, o := range e.observers {
			if so, ok := o.(StepObserver); ok {
				so.StepFinished(ctx, rep, m.ID, elapsed, err)
			}
		}
	}

	return err
}

func (e *Engine) execStep(
	ctx context.Context, j *journal, dryRun bool, m Migration, label string, step Step,
) error {
	switch step.Kind() {
	case KindSQL:
		j.add(state.LevelInfo, label+" SQL (inline)", "id", m.ID)
		return e.execSQL(ctx, j, dryRun, m.ID, step.Text())
	case KindFile:
		j.add(state.LevelInfo, label+" SQL (file)", "id", m.ID, "file", step.Path())
		data, err := vfs.ReadFile(e.registry.FS(), step.Path())
		if err != nil {
			return &Error{Code: CodeFileNotFound, ID: m.ID, File: step.Path(), Err: err}
		}
		return e.execSQL(ctx, j, dryRun, m.ID, string(data))
	case KindFunc:
		if dryRun {
			j.add(state.LevelInfo, "DRY RUN: "+label+" callback skipped", "id", m.ID)
			return nil
		}
		j.add(state.LevelInfo, label+" callback", "id", m.ID)
		if err := step.fn(ctx, e.conn); err != nil {
			return &Error{Code: CodeCallbackFailed, ID: m.ID, Err: err}
		}
		return nil
	default:
		return &Error{
			Code: CodeInvalidMigration, ID: m.ID,
			Err: fmt.Errorf("no usable %s step", strings.ToLower(label)),
		}
	}
}

// execSQL splits text into statements and executes them in a single
// transaction. The transaction isn't tied to the cancellation of ctx, since
// aborting a migration halfway is never desirable. Each statement is limited by
// the statement timeout instead.
func (e *Engine) execSQL(ctx context.Context, j *journal, dryRun bool, id, text string) error {
	res := sqlsplit.Scan(text)
	if res.Unterminated != "" {
		j.add(state.LevelWarn, fmt.Sprintf("Unterminated %s at end of SQL", res.Unterminated), "id", id)
	}
	if len(res.Statements) == 0 {
		return nil
	}

	if dryRun {
		for _, stmt := range res.Statements {
			j.add(state.LevelInfo, "DRY RUN: "+stmt, "id", id)
		}
		return nil
	}

	txCtx := context.WithoutCancel(ctx)
	tx, err := e.conn.BeginTx(txCtx, nil)
	if err != nil {
		j.add(state.LevelError, "Failed starting transaction", "id", id, "error", err)
		return &Error{Code: CodeDB, ID: id, Err: err}
	}

	for _, stmt := range res.Statements {
		if err = e.execStatement(txCtx, tx, stmt); err != nil {
			j.add(state.LevelError, "SQL failed", "id", id, "sql", stmt, "error", err)
			if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
				j.add(state.LevelError, "Failed rolling back transaction", "id", id, "error", rerr)
			}
			return &Error{Code: CodeDB, ID: id, Statement: stmt, Err: err}
		}
	}

	if err = tx.Commit(); err != nil {
		j.add(state.LevelError, "Failed committing transaction", "id", id, "error", err)
		return &Error{Code: CodeDB, ID: id, Err: err}
	}

	return nil
}

func (e *Engine) execStatement(ctx context.Context, tx *sql.Tx, stmt string) error {
	if e.stmtTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.stmtTimeout)
		defer cancel()
	}

	_, err := tx.ExecContext(ctx, stmt)
	return err //nolint:wrapcheck // Wrapped by the caller.
}

// journal buffers the audit entries of a run, and mirrors them to the logger
// immediately. Entries are written to the state store only between
// migrations, so that no state is written while a migration transaction is
// open.
type journal struct {
	store   StateStore
	logger  *slog.Logger
	timeNow func() time.Time
	runID   string
	entries []state.Entry
}

func (e *Engine) newJournal(rep *Report) *journal {
	return &journal{
		store:   e.store,
		logger:  e.logger.With("run", rep.RunID, "operation", rep.Operation, "dry_run", rep.DryRun),
		timeNow: e.timeNow,
		runID:   rep.RunID,
	}
}

// add records an entry with the given message and key-value context pairs.
// Error values are stored as their message.
func (j *journal) add(level state.Level, msg string, kv ...any) {
	ctx := make(map[string]any, len(kv)/2+1)
	args := make([]any, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		val := kv[i+1]
		switch v := val.(type) {
		case error:
			val = v.Error()
		case fmt.Stringer:
			val = v.String()
		case Code:
			val = string(v)
		}
		if val == "" {
			continue
		}
		ctx[key] = val
		args = append(args, key, val)
	}
	ctx["run"] = j.runID

	j.entries = append(j.entries, state.Entry{
		Time:    j.timeNow().UTC(),
		Level:   level,
		Message: msg,
		Context: ctx,
	})
	j.logger.Log(context.Background(), level.SlogLevel(), msg, args...)
}

// flush writes buffered entries to the state store. A failure is logged but
// doesn't fail the run, since the audit log is secondary to the applied set.
func (j *journal) flush(ctx context.Context) {
	if len(j.entries) == 0 {
		return
	}

	if err := j.store.AppendLog(context.WithoutCancel(ctx), j.entries...); err != nil {
		j.logger.Error("failed writing audit log", "error", err.Error())
	}
	j.entries = nil
}

// errAttrs returns audit context pairs describing err.
func errAttrs(err error) []any {
	attrs := []any{"code", CodeOf(err), "error", err}
	var merr *Error
	if errors.As(err, &merr) {
		attrs = append(attrs, "id", merr.ID, "sql", merr.Statement)
		if len(merr.Path) > 0 {
			attrs = append(attrs, "path", strings.Join(merr.Path, " -> "))
		}
	}
	return attrs
}
