package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"go.hackfix.me/sqlmgr/state"
	"go.hackfix.me/sqlmgr/web/server/api/util"
	"go.hackfix.me/sqlmgr/web/server/types"
)

const defaultLogTail = 50

// LogTail returns the most recent audit log entries. The number of entries is
// set with the n query parameter, where 0 returns all entries.
func (h *Handler) LogTail(ctx context.Context, req *types.LogRequest) (*types.LogResponse, error) {
	n := defaultLogTail
	if v := req.URL.Query().Get("n"); v != "" {
		var err error
		if n, err = strconv.Atoi(v); err != nil || n < 0 {
			return nil, types.NewError(http.StatusBadRequest, "invalid_request",
				fmt.Sprintf("invalid value of parameter n: '%s'", v))
		}
	}

	store, err := h.appCtx.StateStore()
	if err != nil {
		return nil, err //nolint:wrapcheck // Converted to an API error by the handler.
	}

	entries, err := store.LogTail(ctx, n)
	if err != nil {
		return nil, err //nolint:wrapcheck // Converted to an API error by the handler.
	}

	return types.NewLogResponse(entries), nil
}

// LogClear removes all audit log entries.
func (h *Handler) LogClear(ctx context.Context, _ *types.LogRequest) (*types.LogResponse, error) {
	store, err := h.appCtx.StateStore()
	if err != nil {
		return nil, err //nolint:wrapcheck // Converted to an API error by the handler.
	}

	if err = store.ClearLog(ctx); err != nil {
		return nil, err //nolint:wrapcheck // Converted to an API error by the handler.
	}
	h.logger.Info("cleared the audit log")

	return types.NewLogResponse(nil), nil
}

// LogExport writes the whole audit log as CSV.
func (h *Handler) LogExport(w http.ResponseWriter, r *http.Request) {
	store, err := h.appCtx.StateStore()
	if err == nil {
		entries, lerr := store.LogTail(r.Context(), 0)
		if lerr == nil {
			w.Header().Set("Content-Type", "text/csv; charset=utf-8")
			w.Header().Set("Content-Disposition", `attachment; filename="sqlmgr-log.csv"`)
			if err = state.WriteCSV(w, entries); err != nil {
				h.logger.Error("failed writing CSV export", "error", err.Error())
			}
			return
		}
		err = lerr
	}

	h.logger.Error("failed exporting the audit log", "error", err.Error())
	resp := types.NewBaseResponse(http.StatusInternalServerError, types.FromMigrationError(err))
	_ = util.WriteJSON(w, &resp)
}
