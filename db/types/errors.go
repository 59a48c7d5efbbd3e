package types

import (
	"errors"
	"fmt"

	"github.com/glebarez/go-sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// LoadError represents an error that occurred while loading data from the database.
type LoadError struct {
	ModelName string
	ID        string
	Err       error
}

// Error returns a string representation of the error.
func (e LoadError) Error() string {
	return fmt.Sprintf("failed loading %s '%s': %s", e.ModelName, e.ID, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e LoadError) Unwrap() error {
	return e.Err
}

// SaveError represents an error that occurred while writing data to the database.
type SaveError struct {
	ModelName string
	ID        string
	Err       error
}

// Error returns a string representation of the error.
func (e SaveError) Error() string {
	return fmt.Sprintf("failed saving %s '%s': %s", e.ModelName, e.ID, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e SaveError) Unwrap() error {
	return e.Err
}

// BusyError is returned when the database is locked by another connection or
// process, and the operation may succeed if retried.
type BusyError struct {
	Err error
}

// Error returns a string representation of the error.
func (e BusyError) Error() string {
	return fmt.Sprintf("database is busy: %s", e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e BusyError) Unwrap() error {
	return e.Err
}

// Err converts an expected error returned by SQLite into a friendly DB error
// of one of the types defined above.
func Err(err error) error {
	var sqlErr *sqlite.Error
	if !errors.As(err, &sqlErr) {
		return err
	}

	// Extended result codes carry the primary code in the lowest byte.
	switch sqlErr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return &BusyError{Err: err}
	}

	return err
}

// IsBusy reports whether err indicates that the database is temporarily locked.
func IsBusy(err error) bool {
	var berr *BusyError
	return errors.As(Err(err), &berr)
}
