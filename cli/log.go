package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alecthomas/kong"

	actx "go.hackfix.me/sqlmgr/app/context"
	aerrors "go.hackfix.me/sqlmgr/app/errors"
	"go.hackfix.me/sqlmgr/state"
)

// AuditLog manages the audit log of migration runs.
type AuditLog struct {
	Tail struct {
		N    int  `short:"n" default:"20" help:"Number of entries to show. 0 shows all entries."`
		JSON bool `name:"json" help:"Output entries as JSON."`
	} `kong:"cmd,help='Show the most recent log entries.'"`
	Clear  struct{} `kong:"cmd,help='Remove all log entries.'"`
	Export struct {
		Output string `short:"o" default:"-" help:"File to write the CSV to. Defaults to stdout."`
	} `kong:"cmd,help='Export the log as CSV.'"`
}

// Run the log command.
func (c *AuditLog) Run(kctx *kong.Context, appCtx *actx.Context) error {
	store, err := appCtx.StateStore()
	if err != nil {
		return err
	}

	switch kctx.Command() {
	case "log tail":
		if c.Tail.N < 0 {
			return aerrors.NewRuntimeError(
				fmt.Sprintf("invalid number of entries to show: %d", c.Tail.N), nil,
				"Pass 0 to show all entries.")
		}
		entries, err := store.LogTail(appCtx.Ctx, c.Tail.N)
		if err != nil {
			return aerrors.NewRuntimeError("failed reading the audit log", err, "")
		}
		if c.Tail.JSON {
			enc := json.NewEncoder(appCtx.Stdout)
			enc.SetIndent("", "  ")
			//nolint:wrapcheck // This is fine.
			return enc.Encode(entries)
		}
		return renderLog(entries, appCtx.Stdout)
	case "log clear":
		if err = store.ClearLog(appCtx.Ctx); err != nil {
			return aerrors.NewRuntimeError("failed clearing the audit log", err, "")
		}
		appCtx.Logger.Info("cleared the audit log")
	case "log export":
		return c.export(appCtx, store)
	}

	return nil
}

func (c *AuditLog) export(appCtx *actx.Context, store *state.Store) (err error) {
	w := appCtx.Stdout
	if c.Export.Output != "-" {
		f, ferr := appCtx.FS.Create(c.Export.Output)
		if ferr != nil {
			return aerrors.NewRuntimeError("failed creating the export file", ferr, "")
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = aerrors.NewRuntimeError("failed closing the export file", cerr, "")
			}
		}()
		w = f
	}

	if err = store.WriteCSV(appCtx.Ctx, w); err != nil {
		return aerrors.NewRuntimeError("failed exporting the audit log", err, "")
	}

	if c.Export.Output != "-" {
		appCtx.Logger.Info("exported the audit log", "file", c.Export.Output)
	}

	return nil
}

func renderLog(entries []state.Entry, w io.Writer) error {
	data := make([][]string, 0, len(entries))
	for _, e := range entries {
		ctxJSON := ""
		if len(e.Context) > 0 {
			b, err := json.Marshal(e.Context)
			if err != nil {
				return fmt.Errorf("failed encoding log entry context: %w", err)
			}
			ctxJSON = string(b)
		}
		data = append(data, []string{
			e.Time.Local().Format(time.DateTime), string(e.Level), e.Message, ctxJSON,
		})
	}

	header := []string{"Time", "Level", "Message", "Context"}
	if err := renderTable(w, header, data, 80); err != nil {
		return fmt.Errorf("failed rendering log table: %w", err)
	}

	return nil
}
