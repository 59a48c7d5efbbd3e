package cli

import (
	"errors"
	"fmt"
	"io"

	actx "go.hackfix.me/sqlmgr/app/context"
	aerrors "go.hackfix.me/sqlmgr/app/errors"
	"go.hackfix.me/sqlmgr/migration"
)

// Apply applies pending migrations.
type Apply struct {
	IDs    []string `arg:"" optional:"" name:"id" help:"IDs of the migrations to apply. All pending migrations are applied if omitted."`
	DryRun bool     `help:"Log the statements that would be executed, without changing the database."`
}

// Run the apply command.
func (c *Apply) Run(appCtx *actx.Context) error {
	eng, err := appCtx.Engine()
	if err != nil {
		return err
	}

	rep, err := eng.Apply(appCtx.Ctx, c.IDs, c.DryRun)
	printReport(appCtx.Stdout, rep)
	if err != nil {
		return runError("failed applying migrations", err)
	}

	return nil
}

// Rollback rolls back applied migrations.
type Rollback struct {
	IDs    []string `arg:"" name:"id" help:"IDs of the migrations to roll back."`
	DryRun bool     `help:"Log the statements that would be executed, without changing the database."`
}

// Run the rollback command.
func (c *Rollback) Run(appCtx *actx.Context) error {
	eng, err := appCtx.Engine()
	if err != nil {
		return err
	}

	rep, err := eng.Rollback(appCtx.Ctx, c.IDs, c.DryRun)
	printReport(appCtx.Stdout, rep)
	if err != nil {
		return runError("failed rolling back migrations", err)
	}

	return nil
}

// printReport writes one line per migration that was handled by the run.
func printReport(w io.Writer, rep *migration.Report) {
	if rep == nil {
		return
	}

	verb := "applied"
	if rep.Operation == migration.OpRollback {
		verb = "rolled back"
	}
	if rep.DryRun {
		verb = "would be " + verb
	}

	for _, id := range rep.Executed {
		fmt.Fprintf(w, "%s: %s\n", id, verb)
	}
	for _, id := range rep.Skipped {
		fmt.Fprintf(w, "%s: skipped, no down step\n", id)
	}
	if rep.Failed != "" {
		fmt.Fprintf(w, "%s: failed\n", rep.Failed)
	}
}

func runError(msg string, err error) error {
	var hint string
	switch {
	case errors.Is(err, migration.ErrLocked):
		hint = "Another run holds the migration lock. Retry later, or increase --lock-timeout."
	case errors.Is(err, migration.ErrUnappliedDependency):
		hint = "Select the dependency as well, or apply it first."
	case errors.Is(err, migration.ErrDependentsApplied):
		hint = "Roll back the dependent migration first, or select it as well."
	case errors.Is(err, migration.ErrInvalidSelection):
		hint = "Check for empty arguments. Omit all IDs to apply every pending migration."
	}

	return aerrors.NewRuntimeError(msg, err, hint)
}
