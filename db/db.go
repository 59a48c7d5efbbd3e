package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	//nolint:revive,nolintlint // Idiomatic way of loading DB libraries.
	_ "github.com/glebarez/go-sqlite"
	//nolint:revive,nolintlint // Idiomatic way of loading DB libraries.
	_ "github.com/jackc/pgx/v5/stdlib"

	"go.hackfix.me/sqlmgr/db/types"
	"go.hackfix.me/sqlmgr/sqlsplit"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// DB wraps sql.DB with the dialect of the target database.
type DB struct {
	*sql.DB
	dialect types.Dialect
	dsn     string
	timeNow func() time.Time
}

var _ types.Querier = (*DB)(nil)

// Open connects to the database at dsn using the driver of dialect.
func Open(ctx context.Context, dialect types.Dialect, dsn string, timeNow func() time.Time) (*DB, error) {
	sqlDB, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed opening %s database: %w", dialect, err)
	}

	d := &DB{DB: sqlDB, dialect: dialect, dsn: dsn, timeNow: timeNow}

	if dialect == types.DialectSQLite {
		if strings.Contains(dsn, "mode=memory") || strings.Contains(dsn, ":memory:") {
			// See https://github.com/mattn/go-sqlite3#faq
			d.SetMaxIdleConns(10)
			d.SetConnMaxLifetime(time.Duration(math.Inf(1)))
		}

		// Enable foreign key enforcement
		if _, err = d.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed enabling foreign key enforcement: %w", err)
		}
	}

	if err = d.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed connecting to %s database: %w", dialect, err)
	}

	return d, nil
}

// Dialect returns the SQL dialect of the database.
func (d *DB) Dialect() types.Dialect {
	return d.dialect
}

// TimeNow returns the current system time.
func (d *DB) TimeNow() time.Time {
	return d.timeNow()
}

// Init creates the internal tables used to store the tool's own state, if
// they don't exist yet, and records the version of the tool that created
// them. Calling Init on an initialized database is a no-op.
func (d *DB) Init(ctx context.Context, appVersion string, logger *slog.Logger) error {
	dblogger := logger.With("dialect", d.dialect)

	stmts, err := schemaStatements()
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err = d.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed creating internal schema: %w", err)
		}
	}

	var count int
	if err = d.QueryRowContext(ctx, `SELECT COUNT(*) FROM _meta`).Scan(&count); err != nil {
		return fmt.Errorf("failed reading _meta: %w", err)
	}
	if count > 0 {
		return nil
	}

	_, err = d.ExecContext(ctx,
		d.dialect.Rebind(`INSERT INTO _meta (version, initialized_at) VALUES (?, ?)`),
		appVersion, d.timeNow().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed inserting into _meta: %w", err)
	}

	dblogger.Info("database initialized", "version", appVersion)

	return nil
}

func schemaStatements() ([]string, error) {
	files, err := fs.Glob(schemaFS, "schema/*.sql")
	if err != nil {
		return nil, fmt.Errorf("failed listing schema files: %w", err)
	}
	slices.Sort(files)

	var stmts []string
	for _, f := range files {
		data, err := schemaFS.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed reading schema file %s: %w", f, err)
		}
		stmts = append(stmts, sqlsplit.Split(string(data))...)
	}

	return stmts, nil
}
