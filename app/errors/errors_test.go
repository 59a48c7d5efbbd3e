package errors

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"go.hackfix.me/sqlmgr/migration"
)

//nolint:paralleltest // Replaces the default logger.
func TestErrorf(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	tests := []struct {
		name string
		err  error
		exp  string
	}{
		{
			name: "ok/plain",
			err:  errors.New("boom"),
			exp:  "level=ERROR msg=boom\n",
		},
		{
			name: "ok/structured",
			err:  NewWithCause("failed", errors.New("boom"), "key", "value"),
			exp:  "level=ERROR msg=failed cause=boom key=value\n",
		},
		{
			name: "ok/migration",
			err: fmt.Errorf("failed applying: %w", &migration.Error{
				Code: migration.CodeDB, ID: "002_users", Err: errors.New("no such table"),
			}),
			exp: `code=db_error migration=002_users`,
		},
		{
			name: "ok/hint",
			err:  NewRuntimeError("failed applying migrations", errors.New("locked"), "Retry later."),
			exp:  `level=ERROR msg="failed applying migrations: locked" hint="Retry later."`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			Errorf(tt.err)
			assert.Contains(t, buf.String(), tt.exp)
		})
	}
}
