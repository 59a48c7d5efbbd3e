package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		exp    Dialect
		expErr string
	}{
		{in: "sqlite", exp: DialectSQLite},
		{in: "SQLite3", exp: DialectSQLite},
		{in: "postgres", exp: DialectPostgres},
		{in: "postgresql", exp: DialectPostgres},
		{in: "pgx", exp: DialectPostgres},
		{in: "mysql", expErr: "unsupported database driver 'mysql'"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			d, err := DialectFromString(tt.in)
			if tt.expErr != "" {
				require.EqualError(t, err, tt.expErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.exp, d)
		})
	}

	assert.Equal(t, "sqlite", DialectSQLite.DriverName())
	assert.Equal(t, "pgx", DialectPostgres.DriverName())
}

func TestRebind(t *testing.T) {
	t.Parallel()

	q := `SELECT * FROM t WHERE a = ? AND b = '?' AND "c?" = ? LIMIT ?`
	assert.Equal(t, q, DialectSQLite.Rebind(q))
	assert.Equal(t,
		`SELECT * FROM t WHERE a = $1 AND b = '?' AND "c?" = $2 LIMIT $3`,
		DialectPostgres.Rebind(q))
}

func TestIsBusy(t *testing.T) {
	t.Parallel()

	assert.False(t, IsBusy(errors.New("boom")))
	assert.False(t, IsBusy(nil))
	assert.True(t, IsBusy(&BusyError{Err: errors.New("locked")}))
}
