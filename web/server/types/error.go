package types

import (
	"errors"
	"net/http"

	"go.hackfix.me/sqlmgr/migration"
)

// CodeInternal is the code of errors that aren't caused by the request.
const CodeInternal = "internal"

// Error represents an HTTP error with status code, machine-readable code and
// message.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

// Error returns the error message string.
func (e *Error) Error() string {
	return e.Message
}

// NewError creates a new Error with the specified status code and message.
func NewError(statusCode int, code, message string) *Error {
	return &Error{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
	}
}

// FromMigrationError converts err into an *Error. Migration errors are
// rejections of the request and map to 400 Bad Request with the migration
// error code. All other errors map to 500 Internal Server Error.
func FromMigrationError(err error) *Error {
	var terr *Error
	if errors.As(err, &terr) {
		return terr
	}
	if code := migration.CodeOf(err); code != "" {
		return NewError(http.StatusBadRequest, string(code), err.Error())
	}
	return NewError(http.StatusInternalServerError, CodeInternal, err.Error())
}
