package queries

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"strings"

	"go.hackfix.me/sqlmgr/db/types"
)

// Tables returns the names of all tables in the database that contain user
// data, in ascending order. Internal tables, whose names start with an
// underscore, are excluded.
func Tables(ctx context.Context, d types.Querier, dialect types.Dialect) ([]string, error) {
	query := `SELECT name FROM sqlite_master WHERE type = 'table'`
	if dialect == types.DialectPostgres {
		query = `SELECT table_name FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'`
	}

	rows, err := d.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			return nil, err
		}

		// Exclude internal tables
		if !strings.HasPrefix(name, "_") && !strings.HasPrefix(name, "sqlite_") {
			tables = append(tables, name)
		}
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	slices.Sort(tables)

	return tables, nil
}

// Version returns the application version the database was initialized with.
// If the returned sql.Null value is invalid, it indicates that the database
// hasn't been initialized.
func Version(ctx context.Context, d types.Querier) (sql.Null[string], error) {
	var version sql.Null[string]
	err := d.QueryRowContext(ctx, `SELECT version FROM _meta`).
		Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return version, err
	}

	return version, nil
}
