package migration

import (
	"context"
	"database/sql"
	"fmt"
)

// Conn is the relational execution context migrations run against. It's
// satisfied by *sql.DB.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Func is a migration step implemented in Go code. It's invoked outside of a
// transaction, and a returned error fails the migration.
type Func func(ctx context.Context, conn Conn) error

// StepKind is the shape of a Step.
type StepKind int

const (
	// KindNone is the kind of the zero Step, which does nothing and is
	// considered absent.
	KindNone StepKind = iota
	// KindSQL is a step with inline SQL text.
	KindSQL
	// KindFile is a step that reads SQL text from a file.
	KindFile
	// KindFunc is a step that calls a Func.
	KindFunc
)

func (k StepKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindSQL:
		return "sql"
	case KindFile:
		return "file"
	case KindFunc:
		return "func"
	default:
		return fmt.Sprintf("StepKind(%d)", int(k))
	}
}

// Step is an action that applies or reverses a migration. Exactly one of its
// shapes is populated, depending on its kind. Use the SQL, File and Call
// constructors to create one.
type Step struct {
	kind StepKind
	sql  string
	path string
	fn   Func
}

// SQL returns a step that executes the given SQL text. The text may contain
// several statements.
func SQL(text string) Step {
	return Step{kind: KindSQL, sql: text}
}

// File returns a step that executes the SQL text stored in the file at path.
// The path is resolved on the filesystem the Engine was created with.
func File(path string) Step {
	return Step{kind: KindFile, path: path}
}

// Call returns a step that invokes fn.
func Call(fn Func) Step {
	if fn == nil {
		return Step{}
	}
	return Step{kind: KindFunc, fn: fn}
}

// Kind returns the shape of the step.
func (s Step) Kind() StepKind {
	return s.kind
}

// IsZero reports whether the step is absent.
func (s Step) IsZero() bool {
	return s.kind == KindNone
}

// Text returns the inline SQL text of a KindSQL step.
func (s Step) Text() string {
	return s.sql
}

// Path returns the file path of a KindFile step.
func (s Step) Path() string {
	return s.path
}

// Migration is a named unit of database change.
type Migration struct {
	ID          string
	Description string
	Group       string
	Depends     []string
	Up          Step
	// Down is optional. A zero Down means the migration can't be reversed.
	Down Step

	// Source is where the migration was defined: a file path for migrations
	// discovered on the filesystem, or "hook" for those contributed by a Hook.
	Source string
}

// Reversible reports whether the migration defines a down step.
func (m Migration) Reversible() bool {
	return !m.Down.IsZero()
}

// Label returns the description of the migration, or its ID if it has none.
func (m Migration) Label() string {
	if m.Description != "" {
		return m.Description
	}
	return m.ID
}
