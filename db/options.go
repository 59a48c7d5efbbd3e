package db

import (
	"context"
	"database/sql"
	"errors"

	"go.hackfix.me/sqlmgr/db/types"
	"go.hackfix.me/sqlmgr/state"
)

// OptionsBackend is a state.Backend that stores values in the _options table
// of the database. Init must have been called on the database.
type OptionsBackend struct {
	d       types.Querier
	dialect types.Dialect
}

var _ state.Backend = (*OptionsBackend)(nil)

// NewOptionsBackend returns an OptionsBackend that uses d.
func NewOptionsBackend(d *DB) *OptionsBackend {
	return &OptionsBackend{d: d, dialect: d.dialect}
}

// Get implements state.Backend.
func (b *OptionsBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := b.d.QueryRowContext(ctx,
		b.dialect.Rebind(`SELECT value FROM _options WHERE name = ?`), key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, &types.LoadError{ModelName: "option", ID: key, Err: types.Err(err)}
	}

	return []byte(value), nil
}

// Set implements state.Backend.
func (b *OptionsBackend) Set(ctx context.Context, key string, value []byte) error {
	_, err := b.d.ExecContext(ctx, b.dialect.Rebind(
		`INSERT INTO _options (name, value) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value`),
		key, string(value))
	if err != nil {
		return &types.SaveError{ModelName: "option", ID: key, Err: types.Err(err)}
	}

	return nil
}
