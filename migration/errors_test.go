package migration

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk I/O error")
	tests := []struct {
		name   string
		err    *Error
		expMsg string
		expIs  error
	}{
		{
			name:   "missing_dependency",
			err:    &Error{Code: CodeMissingDependency, ID: "b", Related: "a"},
			expMsg: `migration "b" depends on missing migration "a"`,
			expIs:  ErrMissingDependency,
		},
		{
			name:   "circular_dependency",
			err:    &Error{Code: CodeCircularDependency, ID: "a", Path: []string{"a", "b", "a"}},
			expMsg: "circular dependency detected: a -> b -> a",
			expIs:  ErrCircularDependency,
		},
		{
			name:   "db_error_statement",
			err:    &Error{Code: CodeDB, ID: "m", Statement: "INSERT INTO t\n  VALUES (1)", Err: cause},
			expMsg: `migration "m": failed executing statement "INSERT INTO t VALUES (1)": disk I/O error`,
			expIs:  ErrDB,
		},
		{
			name:   "db_error",
			err:    &Error{Code: CodeDB, ID: "m", Err: cause},
			expMsg: `migration "m": database error: disk I/O error`,
			expIs:  ErrDB,
		},
		{
			name:   "file_not_found",
			err:    &Error{Code: CodeFileNotFound, ID: "m", File: "/m/up.sql"},
			expMsg: `migration "m": file not readable: /m/up.sql`,
			expIs:  ErrFileNotFound,
		},
		{
			name:   "no_selection",
			err:    &Error{Code: CodeNoSelection},
			expMsg: "no migrations selected",
			expIs:  ErrNoSelection,
		},
		{
			name:   "invalid_selection",
			err:    &Error{Code: CodeInvalidSelection},
			expMsg: "empty migration ID in selection",
			expIs:  ErrInvalidSelection,
		},
		{
			name:   "locked",
			err:    &Error{Code: CodeLocked, Err: cause},
			expMsg: "another migration run is in progress: disk I/O error",
			expIs:  ErrLocked,
		},
		{
			name:   "unknown_code",
			err:    &Error{Code: "weird"},
			expMsg: "weird",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.EqualError(t, tt.err, tt.expMsg)
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.Equal(t, tt.err.Code, CodeOf(wrapped))
			if tt.expIs != nil {
				assert.ErrorIs(t, wrapped, tt.expIs)
			}
			assert.NotErrorIs(t, tt.err, ErrCallbackFailed)
			if tt.err.Err != nil {
				assert.ErrorIs(t, wrapped, cause)
			}
		})
	}

	assert.Equal(t, Code(""), CodeOf(cause))
	assert.Equal(t, Code(""), CodeOf(nil))
}

func TestAbbreviate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a b c", abbreviate(" a\n b\tc ", 10))
	long := strings.Repeat("x", 100)
	got := abbreviate(long, 20)
	assert.Len(t, got, 20)
	assert.True(t, strings.HasSuffix(got, "..."))

	multi := abbreviate(strings.Repeat("é", 30), 10)
	assert.True(t, utf8.ValidString(multi))
	assert.Equal(t, strings.Repeat("é", 7)+"...", multi)
}
