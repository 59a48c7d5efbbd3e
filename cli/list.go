package cli

import (
	"fmt"
	"strings"

	actx "go.hackfix.me/sqlmgr/app/context"
	aerrors "go.hackfix.me/sqlmgr/app/errors"
)

// List shows all discovered migrations and whether they're applied.
type List struct {
	Pending bool `help:"Only list pending migrations."`
	Strict  bool `help:"Fail if any migration definition is invalid."`
}

// Run the list command.
func (c *List) Run(appCtx *actx.Context) error {
	eng, err := appCtx.Engine()
	if err != nil {
		return err
	}

	ov, err := eng.Status(appCtx.Ctx)
	if err != nil {
		return aerrors.NewRuntimeError("failed listing migrations", err, "")
	}

	for _, s := range ov.Skipped {
		appCtx.Logger.Warn("skipped invalid migration definition",
			"path", s.Path, "error", s.Err.Error())
	}
	if c.Strict {
		cat, err := eng.Discover()
		if err != nil {
			return aerrors.NewRuntimeError("failed listing migrations", err, "")
		}
		if err = cat.Err(); err != nil {
			return aerrors.NewRuntimeError("invalid migration definitions", err,
				"Fix or remove the listed files.")
		}
	}

	data := make([][]string, 0, len(ov.Migrations))
	for _, m := range ov.Migrations {
		status := "pending"
		if m.Applied {
			if c.Pending {
				continue
			}
			status = "applied"
		}
		data = append(data, []string{
			m.ID, status, m.Group, strings.Join(m.Depends, ","), m.Description,
		})
	}

	if len(data) == 0 {
		appCtx.Logger.Info("no migrations found")
		return nil
	}

	header := []string{"ID", "Status", "Group", "Depends", "Description"}
	if err = renderTable(appCtx.Stdout, header, data, 60); err != nil {
		return fmt.Errorf("failed rendering migrations table: %w", err)
	}

	return nil
}
