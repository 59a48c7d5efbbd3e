package errors

import (
	"errors"
	"log/slog"

	"go.hackfix.me/sqlmgr/migration"
)

// Log logs err with the default slog logger. The fields and cause of a
// StructuredError are logged as attributes.
func Log(err error) {
	var serr *StructuredError
	if !errors.As(err, &serr) {
		slog.Error(err.Error())
		return
	}

	slog.Error(serr.Error(), serr.attrs()...)
}

// Errorf logs a fatal application error. Migration errors are logged with
// their code and the ID of the migration they refer to as fields, and runtime
// errors with their hint.
func Errorf(err error) {
	var fields []any
	var merr *migration.Error
	if errors.As(err, &merr) {
		fields = append(fields, "code", string(merr.Code))
		if merr.ID != "" {
			fields = append(fields, "migration", merr.ID)
		}
	}
	var rerr *RuntimeError
	if errors.As(err, &rerr) && rerr.hint != "" {
		fields = append(fields, "hint", rerr.hint)
	}
	if len(fields) > 0 {
		err = With(err, fields...)
	}
	Log(err)
}
