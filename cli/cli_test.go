package cli

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.hackfix.me/sqlmgr/app/config"
	aerrors "go.hackfix.me/sqlmgr/app/errors"
	"go.hackfix.me/sqlmgr/migration"
)

func TestDurationValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		args   []string
		exp    time.Duration
		expSet bool
		expErr string
	}{
		{name: "ok/unset", args: []string{}},
		{name: "ok/seconds", args: []string{"--timeout", "30s"}, exp: 30 * time.Second, expSet: true},
		{name: "ok/days", args: []string{"--timeout=2d"}, exp: 48 * time.Hour, expSet: true},
		{name: "ok/zero", args: []string{"--timeout", "0"}, exp: 0, expSet: true},
		{name: "err/negative", args: []string{"--timeout=-5s"}, expErr: "duration must not be negative: -5s"},
		{name: "err/unit", args: []string{"--timeout", "5"}, expErr: "missing unit in duration '5'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var c struct {
				Timeout DurationValue
			}
			parser, err := kong.New(&c, kong.Exit(func(int) {}))
			require.NoError(t, err)

			_, err = parser.Parse(tt.args)
			if tt.expErr != "" {
				require.ErrorContains(t, err, tt.expErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expSet, c.Timeout.Valid)
			assert.Equal(t, tt.exp, c.Timeout.V)
		})
	}
}

func TestApplyConfig(t *testing.T) {
	t.Parallel()

	c, err := New("sqlmgr", "/config.json", "/data", "test")
	require.NoError(t, err)
	require.NoError(t, c.Parse([]string{
		"--driver", "postgres", "--dsn", "postgres://db/app",
		"--lock-timeout", "1m", "serve",
	}))

	cfg := config.NewConfig(nil, "/config.json")
	cfg.Server.Address.V, cfg.Server.Address.Valid = ":9000", true
	cfg.Lock.Timeout.V, cfg.Lock.Timeout.Valid = time.Second, true

	require.NoError(t, c.ApplyConfig(cfg))
	assert.Equal(t, "postgres", string(cfg.Database.Driver.V))
	assert.Equal(t, "postgres://db/app", cfg.Database.DSN.V)
	assert.Equal(t, time.Minute, cfg.Lock.Timeout.V)
	assert.False(t, cfg.Execution.StatementTimeout.Valid)
	assert.Equal(t, ":9000", c.Serve.Address)
	assert.Equal(t, "serve", c.Command())

	require.NoError(t, c.Parse([]string{"--driver", "oracle", "list"}))
	err = c.ApplyConfig(config.NewConfig(nil, "/config.json"))
	require.EqualError(t, err, "unsupported database driver 'oracle'")
}

func TestPrintReport(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rep  *migration.Report
		exp  string
	}{
		{name: "ok/nil", rep: nil, exp: ""},
		{
			name: "ok/apply",
			rep: &migration.Report{
				Operation: migration.OpApply,
				Executed:  []string{"001", "002"},
				Failed:    "003",
			},
			exp: "001: applied\n002: applied\n003: failed\n",
		},
		{
			name: "ok/rollback_dry_run",
			rep: &migration.Report{
				Operation: migration.OpRollback,
				DryRun:    true,
				Executed:  []string{"002"},
				Skipped:   []string{"001"},
			},
			exp: "002: would be rolled back\n001: skipped, no down step\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			printReport(&buf, tt.rep)
			assert.Equal(t, tt.exp, buf.String())
		})
	}
}

func TestRunError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		expHint string
	}{
		{name: "ok/locked", err: &migration.Error{Code: migration.CodeLocked}, expHint: "increase --lock-timeout"},
		{name: "ok/dependency", err: &migration.Error{Code: migration.CodeUnappliedDependency}, expHint: "apply it first"},
		{name: "ok/dependents", err: &migration.Error{Code: migration.CodeDependentsApplied}, expHint: "dependent migration first"},
		{name: "ok/blank_id", err: &migration.Error{Code: migration.CodeInvalidSelection}, expHint: "Check for empty arguments"},
		{name: "ok/other", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := runError("failed applying migrations", tt.err)
			var rerr *aerrors.RuntimeError
			require.ErrorAs(t, err, &rerr)
			assert.ErrorIs(t, err, tt.err)
			if tt.expHint == "" {
				assert.Empty(t, rerr.Hint())
			} else {
				assert.Contains(t, rerr.Hint(), tt.expHint)
			}
		})
	}
}
