package config

import (
	"testing"
	"time"

	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbtypes "go.hackfix.me/sqlmgr/db/types"
)

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	fs := memoryfs.New()
	cfg := NewConfig(fs, "/etc/sqlmgr/config.json")
	require.NoError(t, cfg.Load())
	cfg.SetDefaults("/data")

	assert.Equal(t, dbtypes.DialectSQLite, cfg.Database.Driver.V)
	assert.Equal(t, "/data/sqlmgr.db?_pragma=busy_timeout(5000)", cfg.Database.DSN.V)
	assert.Equal(t, "/data/migrations", cfg.Migrations.Dir.V)
	assert.Equal(t, 200, cfg.Migrations.LogCap.V)
	assert.Equal(t, StateDatabase, cfg.State.Backend.V)
	assert.Equal(t, LockDatabase, cfg.Lock.Backend.V)
	assert.Equal(t, 5*time.Second, cfg.Lock.Timeout.V)
	assert.Equal(t, time.Minute, cfg.Execution.StatementTimeout.V)
	assert.Equal(t, "sqlmgr:", cfg.Redis.Prefix.V)
	assert.False(t, cfg.Redis.DB.Valid)
	assert.False(t, cfg.Server.Address.Valid)

	require.NoError(t, cfg.Save())
	data, err := vfs.ReadFile(fs, "/etc/sqlmgr/config.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{
  "database": {"driver": "sqlite", "dsn": "/data/sqlmgr.db?_pragma=busy_timeout(5000)"},
  "migrations": {"dir": "/data/migrations", "log_cap": 200},
  "state": {"backend": "database", "path": "/data/state"},
  "lock": {"backend": "database", "timeout": "5s"},
  "execution": {"statement_timeout": "1m"},
  "redis": {"prefix": "sqlmgr:"},
  "server": {}
}`, string(data))

	loaded := NewConfig(fs, "/etc/sqlmgr/config.json")
	require.NoError(t, loaded.Load())
	assert.Equal(t, cfg.Database, loaded.Database)
	assert.Equal(t, cfg.Lock, loaded.Lock)
	assert.Equal(t, cfg.Execution, loaded.Execution)
}

func TestConfigLoad(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		json   string
		check  func(t *testing.T, cfg *Config)
		expErr string
	}{
		{
			name: "ok/postgres_redis",
			json: `{
				"database": {"driver": "postgresql", "dsn": "postgres://localhost/app"},
				"state": {"backend": "redis"},
				"lock": {"backend": "redis", "timeout": "1m30s"},
				"redis": {"address": "localhost:6379", "db": 0}
			}`,
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				cfg.SetDefaults("/data")
				assert.Equal(t, dbtypes.DialectPostgres, cfg.Database.Driver.V)
				assert.Equal(t, "postgres://localhost/app", cfg.Database.DSN.V)
				assert.Equal(t, StateRedis, cfg.State.Backend.V)
				assert.Equal(t, LockRedis, cfg.Lock.Backend.V)
				assert.Equal(t, 90*time.Second, cfg.Lock.Timeout.V)
				assert.True(t, cfg.Redis.DB.Valid)
				assert.Equal(t, 0, cfg.Redis.DB.V)
			},
		},
		{
			name: "ok/postgres_no_default_dsn",
			json: `{"database": {"driver": "postgres"}}`,
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				cfg.SetDefaults("/data")
				assert.False(t, cfg.Database.DSN.Valid)
			},
		},
		{
			name: "ok/calendar_units",
			json: `{"lock": {"timeout": "1d"}, "execution": {"statement_timeout": "0"}}`,
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, 24*time.Hour, cfg.Lock.Timeout.V)
				assert.True(t, cfg.Execution.StatementTimeout.Valid)
				assert.Equal(t, time.Duration(0), cfg.Execution.StatementTimeout.V)
			},
		},
		{
			name:   "err/driver",
			json:   `{"database": {"driver": "mysql"}}`,
			expErr: "failed parsing configuration file: unsupported database driver 'mysql'",
		},
		{
			name:   "err/state_backend",
			json:   `{"state": {"backend": "s3"}}`,
			expErr: "failed parsing configuration file: invalid state backend 's3'",
		},
		{
			name:   "err/lock_backend",
			json:   `{"lock": {"backend": "etcd"}}`,
			expErr: "failed parsing configuration file: invalid lock backend 'etcd'",
		},
		{
			name: "err/lock_timeout",
			json: `{"lock": {"timeout": "5x"}}`,
			expErr: "failed parsing configuration file: failed parsing lock timeout: " +
				"unknown unit 'x' in duration '5x'",
		},
		{
			name:   "err/syntax",
			json:   `{"lock": `,
			expErr: "failed parsing configuration file: unexpected end of JSON input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fs := memoryfs.New()
			require.NoError(t, vfs.WriteFile(fs, "/config.json", []byte(tt.json), 0o644))

			cfg := NewConfig(fs, "/config.json")
			err := cfg.Load()
			if tt.expErr != "" {
				require.EqualError(t, err, tt.expErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}
