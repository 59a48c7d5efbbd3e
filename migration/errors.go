package migration

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Code is a stable, machine-readable identifier of an error kind, suitable for
// returning to API clients.
type Code string

// Error codes.
const (
	CodeMissingDependency   Code = "missing_dependency"
	CodeCircularDependency  Code = "circular_dependency"
	CodeInvalidMigration    Code = "invalid_migration"
	CodeFileNotFound        Code = "file_not_found"
	CodeCallbackFailed      Code = "callback_failed"
	CodeDB                  Code = "db_error"
	CodeNoSelection         Code = "no_selection"
	CodeInvalidSelection    Code = "invalid_selection"
	CodeUnappliedDependency Code = "unapplied_dependency"
	CodeDependentsApplied   Code = "dependents_applied"
	CodeLocked              Code = "locked"
)

// Sentinel errors that can be matched with errors.Is against any *Error of
// the corresponding code.
var (
	ErrMissingDependency   = errors.New("missing dependency")
	ErrCircularDependency  = errors.New("circular dependency")
	ErrInvalidMigration    = errors.New("invalid migration")
	ErrFileNotFound        = errors.New("migration file not found")
	ErrCallbackFailed      = errors.New("callback failed")
	ErrDB                  = errors.New("database error")
	ErrNoSelection         = errors.New("no migrations selected")
	ErrInvalidSelection    = errors.New("invalid migration selection")
	ErrUnappliedDependency = errors.New("unapplied dependency")
	ErrDependentsApplied   = errors.New("dependents still applied")
	ErrLocked              = errors.New("another migration run is in progress")
)

var sentinels = map[Code]error{
	CodeMissingDependency:   ErrMissingDependency,
	CodeCircularDependency:  ErrCircularDependency,
	CodeInvalidMigration:    ErrInvalidMigration,
	CodeFileNotFound:        ErrFileNotFound,
	CodeCallbackFailed:      ErrCallbackFailed,
	CodeDB:                  ErrDB,
	CodeNoSelection:         ErrNoSelection,
	CodeInvalidSelection:    ErrInvalidSelection,
	CodeUnappliedDependency: ErrUnappliedDependency,
	CodeDependentsApplied:   ErrDependentsApplied,
	CodeLocked:              ErrLocked,
}

// Error is returned by all operations of this package that fail for a
// migration-specific reason.
type Error struct {
	Code Code
	// ID of the migration the error refers to, if any.
	ID string
	// Related is the other migration involved in dependency errors: the missing
	// or unapplied dependency, or the applied dependent.
	Related string
	// Path is the dependency chain that forms a cycle, ending with the ID that
	// was re-entered.
	Path []string
	// File is the path of the SQL file that couldn't be read.
	File string
	// Statement is the SQL statement that failed to execute.
	Statement string
	Err       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var msg string
	switch e.Code {
	case CodeMissingDependency:
		if e.ID == "" {
			msg = fmt.Sprintf("unknown migration %q", e.Related)
		} else {
			msg = fmt.Sprintf("migration %q depends on missing migration %q", e.ID, e.Related)
		}
	case CodeCircularDependency:
		msg = "circular dependency detected: " + strings.Join(e.Path, " -> ")
	case CodeInvalidMigration:
		msg = fmt.Sprintf("invalid migration %q", e.ID)
	case CodeFileNotFound:
		msg = fmt.Sprintf("migration %q: file not readable: %s", e.ID, e.File)
	case CodeCallbackFailed:
		msg = fmt.Sprintf("migration %q: callback failed", e.ID)
	case CodeDB:
		if e.Statement != "" {
			msg = fmt.Sprintf("migration %q: failed executing statement %q", e.ID, abbreviate(e.Statement, 80))
		} else {
			msg = fmt.Sprintf("migration %q: database error", e.ID)
		}
	case CodeInvalidSelection:
		msg = "empty migration ID in selection"
	case CodeUnappliedDependency:
		msg = fmt.Sprintf(
			"migration %q depends on %q, which is neither applied nor selected", e.ID, e.Related)
	case CodeDependentsApplied:
		msg = fmt.Sprintf(
			"migration %q can't be rolled back while %q depends on it and is applied", e.ID, e.Related)
	default:
		if s, ok := sentinels[e.Code]; ok {
			msg = s.Error()
		} else {
			msg = string(e.Code)
		}
	}

	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err)
	}

	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel error for the code of e.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Code]
	return ok && s == target
}

// CodeOf returns the code of the first *Error in err's chain, or an empty Code
// if there is none.
func CodeOf(err error) Code {
	var merr *Error
	if errors.As(err, &merr) {
		return merr.Code
	}
	return ""
}

func abbreviate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}
