package errors

import (
	"errors"
	"maps"
	"slices"
)

// StructuredError is an error with key-value fields and an optional cause,
// which are rendered as attributes when the error is logged.
type StructuredError struct {
	err    error
	cause  error
	fields map[string]any
}

// Error implements the error interface.
func (e *StructuredError) Error() string {
	return e.err.Error()
}

// Unwrap allows errors.Is and errors.As to match both the error and its cause.
func (e *StructuredError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.err != nil {
		errs = append(errs, e.err)
	}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

// Cause returns the cause of the error, if any.
func (e *StructuredError) Cause() error {
	return e.cause
}

// Metadata returns a copy of the error fields.
func (e *StructuredError) Metadata() map[string]any {
	if e.fields == nil {
		return nil
	}
	return maps.Clone(e.fields)
}

// attrs returns the fields as slog key-value pairs, starting with the cause
// and followed by the remaining fields sorted by key.
func (e *StructuredError) attrs() []any {
	args := make([]any, 0, len(e.fields)*2+2)

	cause := e.fields["cause"]
	if e.cause != nil {
		cause = e.cause
	}
	if cause != nil {
		args = append(args, "cause", cause)
	}

	for _, k := range slices.Sorted(maps.Keys(e.fields)) {
		if k != "cause" {
			args = append(args, k, e.fields[k])
		}
	}

	return args
}

// NewWith returns a StructuredError with the message msg and the given
// key-value fields.
func NewWith(msg string, fields ...any) *StructuredError {
	return With(errors.New(msg), fields...)
}

// NewWithCause returns a StructuredError with the message msg, a cause and the
// given key-value fields.
func NewWithCause(msg string, cause error, fields ...any) *StructuredError {
	return WithCause(errors.New(msg), cause, fields...)
}

// With adds key-value fields to err. Fields of an existing StructuredError are
// kept, and overwritten by fields with the same key.
func With(err error, fields ...any) *StructuredError {
	var cause error
	if serr, ok := err.(*StructuredError); ok { //nolint:errorlint // Only the top level is merged.
		cause = serr.cause
	}
	return merge(err, cause, fields)
}

// WithCause is like With, but also sets the cause of the error.
func WithCause(err, cause error, fields ...any) *StructuredError {
	return merge(err, cause, fields)
}

func merge(err, cause error, fields []any) *StructuredError {
	if len(fields)%2 != 0 {
		panic("an even number of fields is required")
	}

	out := &StructuredError{err: err, cause: cause, fields: map[string]any{}}
	if serr, ok := err.(*StructuredError); ok { //nolint:errorlint // Only the top level is merged.
		out.err = serr.err
		maps.Copy(out.fields, serr.fields)
	}

	for i := 0; i < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			panic("keys must be strings")
		}
		out.fields[key] = fields[i+1]
	}

	return out
}
