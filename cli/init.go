package cli

import (
	"fmt"

	"github.com/mandelsoft/vfs/pkg/vfs"

	actx "go.hackfix.me/sqlmgr/app/context"
	aerrors "go.hackfix.me/sqlmgr/app/errors"
)

// The Init command writes the configuration file with the effective settings,
// creates the migrations directory, and initializes the internal tables of the
// database.
type Init struct {
	Force bool `help:"Overwrite an existing configuration file."`
}

// Run the init command.
func (c *Init) Run(appCtx *actx.Context) error {
	cfg := appCtx.Config

	_, err := appCtx.FS.Stat(cfg.Path())
	if err != nil && !vfs.IsErrNotExist(err) {
		return aerrors.NewRuntimeError("failed checking the configuration file", err, "")
	}
	if err == nil && !c.Force {
		return aerrors.NewRuntimeError(
			fmt.Sprintf("configuration file '%s' already exists", cfg.Path()), nil,
			"Use --force to overwrite it.")
	}

	if err = cfg.Save(); err != nil {
		return aerrors.NewRuntimeError("failed saving configuration", err, "")
	}

	if err = appCtx.FS.MkdirAll(cfg.Migrations.Dir.V, 0o755); err != nil {
		return aerrors.NewRuntimeError("failed creating the migrations directory", err, "")
	}

	if _, err = appCtx.Database(); err != nil {
		return aerrors.NewRuntimeError("failed initializing database", err, "")
	}

	appCtx.Logger.Info("initialized sqlmgr",
		"config_file", cfg.Path(), "migrations_dir", cfg.Migrations.Dir.V,
		"database_driver", string(cfg.Database.Driver.V))

	return nil
}
