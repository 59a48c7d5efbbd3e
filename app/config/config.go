package config

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/mandelsoft/vfs/pkg/vfs"

	dbtypes "go.hackfix.me/sqlmgr/db/types"
	"go.hackfix.me/sqlmgr/xtime"
)

// Config represents the application configuration, backed by a filesystem for
// persistence.
type Config struct {
	Database   Database
	Migrations Migrations
	State      State
	Lock       Lock
	Execution  Execution
	Redis      Redis
	Server     Server

	fs   vfs.FileSystem
	path string
}

// NewConfig creates a new Config instance with the specified filesystem
// and configuration file path.
func NewConfig(fs vfs.FileSystem, path string) *Config {
	return &Config{fs: fs, path: path}
}

// Load reads and parses the configuration file from the filesystem.
// If the file doesn't exist, it initializes with an empty configuration.
func (c *Config) Load() error {
	configJSON, err := vfs.ReadFile(c.fs, c.path)
	if err != nil && !vfs.IsErrNotExist(err) {
		return fmt.Errorf("failed reading configuration file: %w", err)
	}

	// Ensure that unmarshalling JSON doesn't fail if the file doesn't exist or is empty.
	if len(configJSON) == 0 {
		configJSON = []byte("{}")
	}

	if err = json.Unmarshal(configJSON, c); err != nil {
		return fmt.Errorf("failed parsing configuration file: %w", err)
	}

	return nil
}

// Path returns the filesystem path where the configuration is stored.
func (c *Config) Path() string {
	return c.path
}

// Save writes the current configuration to the filesystem as JSON.
func (c *Config) Save() error {
	if err := c.fs.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed creating configuration directory: %w", err)
	}
	configJSON, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed serializing configuration data: %w", err)
	}
	if err = vfs.WriteFile(c.fs, c.path, configJSON, 0o644); err != nil {
		return fmt.Errorf("failed writing configuration file: %w", err)
	}

	return nil
}

// Database defines the connection to the database migrations run against.
type Database struct {
	// Driver is the SQL dialect of the database: sqlite or postgres.
	Driver sql.Null[dbtypes.Dialect] `json:"driver"`
	// DSN is the data source name passed to the driver. For SQLite it's a file
	// path or URI. If unset, a SQLite database in the data directory is used.
	DSN sql.Null[string] `json:"dsn"`
}

// Migrations defines where migrations are discovered.
type Migrations struct {
	// Dir is the directory scanned for .sql files and definition files.
	Dir sql.Null[string] `json:"dir"`
	// LogCap is the maximum number of audit log entries that are retained.
	LogCap sql.Null[int] `json:"log_cap"`
}

// StateBackend is the kind of storage for the applied set and audit log.
type StateBackend string

// State backends.
const (
	StateDatabase StateBackend = "database"
	StateFile     StateBackend = "file"
	StateRedis    StateBackend = "redis"
)

// State defines where migration state is stored.
type State struct {
	Backend sql.Null[StateBackend] `json:"backend"`
	// Path is the directory used by the file backend.
	Path sql.Null[string] `json:"path"`
}

// LockBackend is the kind of lock that serializes migration runs.
type LockBackend string

// Lock backends.
const (
	// LockDatabase uses advisory locks on PostgreSQL, and a lock table on SQLite.
	LockDatabase LockBackend = "database"
	LockRedis    LockBackend = "redis"
	LockLocal    LockBackend = "local"
)

// Lock defines how migration runs are serialized.
type Lock struct {
	Backend sql.Null[LockBackend] `json:"backend"`
	// Timeout is how long a run waits for the lock before failing.
	// It serializes from/to xtime.Duration string values.
	Timeout sql.Null[time.Duration] `json:"timeout"`
}

// Execution defines limits applied while running migrations.
type Execution struct {
	// StatementTimeout is the maximum execution time of a single SQL statement.
	// It serializes from/to xtime.Duration string values. Zero disables it.
	StatementTimeout sql.Null[time.Duration] `json:"statement_timeout"`
}

// Redis defines the connection to the Redis server used by the redis state
// and lock backends.
type Redis struct {
	Address  sql.Null[string] `json:"address"`
	Password sql.Null[string] `json:"password"`
	DB       sql.Null[int]    `json:"db"`
	// Prefix is prepended to all keys.
	Prefix sql.Null[string] `json:"prefix"`
}

// Server defines configuration options specific to the HTTP server.
type Server struct {
	// Address is the network address in [host]:port format the server will listen on.
	Address sql.Null[string] `json:"address"`
	// APIToken, if set, is required as a bearer token on all API requests.
	APIToken sql.Null[string] `json:"api_token"`
}

type cfgWrapper struct {
	Database   dbCfgWrapper    `json:"database"`
	Migrations migCfgWrapper   `json:"migrations"`
	State      stateCfgWrapper `json:"state"`
	Lock       lockCfgWrapper  `json:"lock"`
	Execution  execCfgWrapper  `json:"execution"`
	Redis      redisCfgWrapper `json:"redis"`
	Server     srvCfgWrapper   `json:"server"`
}
type dbCfgWrapper struct {
	Driver string `json:"driver,omitempty"`
	DSN    string `json:"dsn,omitempty"`
}
type migCfgWrapper struct {
	Dir    string `json:"dir,omitempty"`
	LogCap int    `json:"log_cap,omitempty"`
}
type stateCfgWrapper struct {
	Backend string `json:"backend,omitempty"`
	Path    string `json:"path,omitempty"`
}
type lockCfgWrapper struct {
	Backend string `json:"backend,omitempty"`
	Timeout string `json:"timeout,omitempty"`
}
type execCfgWrapper struct {
	StatementTimeout string `json:"statement_timeout,omitempty"`
}
type redisCfgWrapper struct {
	Address  string `json:"address,omitempty"`
	Password string `json:"password,omitempty"`
	DB       *int   `json:"db,omitempty"`
	Prefix   string `json:"prefix,omitempty"`
}
type srvCfgWrapper struct {
	Address  string `json:"address,omitempty"`
	APIToken string `json:"api_token,omitempty"`
}

// MarshalJSON implements custom JSON marshaling to convert sql.Null values
// to their underlying types, omitting invalid/null fields from the output.
func (c Config) MarshalJSON() ([]byte, error) {
	w := cfgWrapper{}

	if c.Database.Driver.Valid {
		w.Database.Driver = string(c.Database.Driver.V)
	}
	if c.Database.DSN.Valid {
		w.Database.DSN = c.Database.DSN.V
	}

	if c.Migrations.Dir.Valid {
		w.Migrations.Dir = c.Migrations.Dir.V
	}
	if c.Migrations.LogCap.Valid {
		w.Migrations.LogCap = c.Migrations.LogCap.V
	}

	if c.State.Backend.Valid {
		w.State.Backend = string(c.State.Backend.V)
	}
	if c.State.Path.Valid {
		w.State.Path = c.State.Path.V
	}

	if c.Lock.Backend.Valid {
		w.Lock.Backend = string(c.Lock.Backend.V)
	}
	if c.Lock.Timeout.Valid {
		w.Lock.Timeout = xtime.FormatDuration(c.Lock.Timeout.V, time.Millisecond)
	}

	if c.Execution.StatementTimeout.Valid {
		w.Execution.StatementTimeout = xtime.FormatDuration(c.Execution.StatementTimeout.V, time.Millisecond)
	}

	if c.Redis.Address.Valid {
		w.Redis.Address = c.Redis.Address.V
	}
	if c.Redis.Password.Valid {
		w.Redis.Password = c.Redis.Password.V
	}
	if c.Redis.DB.Valid {
		w.Redis.DB = &c.Redis.DB.V
	}
	if c.Redis.Prefix.Valid {
		w.Redis.Prefix = c.Redis.Prefix.V
	}

	if c.Server.Address.Valid {
		w.Server.Address = c.Server.Address.V
	}
	if c.Server.APIToken.Valid {
		w.Server.APIToken = c.Server.APIToken.V
	}

	//nolint:wrapcheck // This is fine.
	return json.Marshal(w)
}

// UnmarshalJSON implements custom JSON unmarshaling to convert plain values
// into sql.Null types and parse duration strings into time.Duration values.
func (c *Config) UnmarshalJSON(data []byte) error {
	var w cfgWrapper
	if err := json.Unmarshal(data, &w); err != nil {
		//nolint:wrapcheck // This is fine.
		return err
	}

	if w.Database.Driver != "" {
		d, err := dbtypes.DialectFromString(w.Database.Driver)
		if err != nil {
			return err //nolint:wrapcheck // Already descriptive.
		}
		c.Database.Driver = sql.Null[dbtypes.Dialect]{V: d, Valid: true}
	}
	if w.Database.DSN != "" {
		c.Database.DSN = sql.Null[string]{V: w.Database.DSN, Valid: true}
	}

	if w.Migrations.Dir != "" {
		c.Migrations.Dir = sql.Null[string]{V: w.Migrations.Dir, Valid: true}
	}
	if w.Migrations.LogCap > 0 {
		c.Migrations.LogCap = sql.Null[int]{V: w.Migrations.LogCap, Valid: true}
	}

	if w.State.Backend != "" {
		switch b := StateBackend(w.State.Backend); b {
		case StateDatabase, StateFile, StateRedis:
			c.State.Backend = sql.Null[StateBackend]{V: b, Valid: true}
		default:
			return fmt.Errorf("invalid state backend '%s'", w.State.Backend)
		}
	}
	if w.State.Path != "" {
		c.State.Path = sql.Null[string]{V: w.State.Path, Valid: true}
	}

	if w.Lock.Backend != "" {
		switch b := LockBackend(w.Lock.Backend); b {
		case LockDatabase, LockRedis, LockLocal:
			c.Lock.Backend = sql.Null[LockBackend]{V: b, Valid: true}
		default:
			return fmt.Errorf("invalid lock backend '%s'", w.Lock.Backend)
		}
	}
	if w.Lock.Timeout != "" {
		dur, err := xtime.ParseDuration(w.Lock.Timeout)
		if err != nil {
			return fmt.Errorf("failed parsing lock timeout: %w", err)
		}
		c.Lock.Timeout = sql.Null[time.Duration]{V: dur, Valid: true}
	}

	if w.Execution.StatementTimeout != "" {
		dur, err := xtime.ParseDuration(w.Execution.StatementTimeout)
		if err != nil {
			return fmt.Errorf("failed parsing statement timeout: %w", err)
		}
		c.Execution.StatementTimeout = sql.Null[time.Duration]{V: dur, Valid: true}
	}

	if w.Redis.Address != "" {
		c.Redis.Address = sql.Null[string]{V: w.Redis.Address, Valid: true}
	}
	if w.Redis.Password != "" {
		c.Redis.Password = sql.Null[string]{V: w.Redis.Password, Valid: true}
	}
	if w.Redis.DB != nil {
		c.Redis.DB = sql.Null[int]{V: *w.Redis.DB, Valid: true}
	}
	if w.Redis.Prefix != "" {
		c.Redis.Prefix = sql.Null[string]{V: w.Redis.Prefix, Valid: true}
	}

	if w.Server.Address != "" {
		c.Server.Address = sql.Null[string]{V: w.Server.Address, Valid: true}
	}
	if w.Server.APIToken != "" {
		c.Server.APIToken = sql.Null[string]{V: w.Server.APIToken, Valid: true}
	}

	return nil
}

// SetDefaults sets default configuration values if they weren't set already.
// Paths are relative to dataDir.
func (c *Config) SetDefaults(dataDir string) {
	if !c.Database.Driver.Valid {
		c.Database.Driver = sql.Null[dbtypes.Dialect]{V: dbtypes.DialectSQLite, Valid: true}
	}
	if !c.Database.DSN.Valid && c.Database.Driver.V == dbtypes.DialectSQLite {
		dsn := filepath.Join(dataDir, "sqlmgr.db") + "?_pragma=busy_timeout(5000)"
		c.Database.DSN = sql.Null[string]{V: dsn, Valid: true}
	}
	if !c.Migrations.Dir.Valid {
		c.Migrations.Dir = sql.Null[string]{V: filepath.Join(dataDir, "migrations"), Valid: true}
	}
	if !c.Migrations.LogCap.Valid {
		c.Migrations.LogCap = sql.Null[int]{V: 200, Valid: true}
	}
	if !c.State.Backend.Valid {
		c.State.Backend = sql.Null[StateBackend]{V: StateDatabase, Valid: true}
	}
	if !c.State.Path.Valid {
		c.State.Path = sql.Null[string]{V: filepath.Join(dataDir, "state"), Valid: true}
	}
	if !c.Lock.Backend.Valid {
		c.Lock.Backend = sql.Null[LockBackend]{V: LockDatabase, Valid: true}
	}
	if !c.Lock.Timeout.Valid {
		c.Lock.Timeout = sql.Null[time.Duration]{V: 5 * time.Second, Valid: true}
	}
	if !c.Execution.StatementTimeout.Valid {
		c.Execution.StatementTimeout = sql.Null[time.Duration]{V: time.Minute, Valid: true}
	}
	if !c.Redis.Prefix.Valid {
		c.Redis.Prefix = sql.Null[string]{V: "sqlmgr:", Valid: true}
	}
}
