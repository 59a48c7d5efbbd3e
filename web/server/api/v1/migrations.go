package api

import (
	"context"

	"go.hackfix.me/sqlmgr/migration"
	"go.hackfix.me/sqlmgr/web/server/types"
)

// Migrations lists all discovered migrations, their status, and the
// definitions that were skipped during discovery.
func (h *Handler) Migrations(
	ctx context.Context, _ *types.MigrationsRequest,
) (*types.MigrationsResponse, error) {
	eng, err := h.appCtx.Engine()
	if err != nil {
		return nil, err //nolint:wrapcheck // Converted to an API error by the handler.
	}

	ov, err := eng.Status(ctx)
	if err != nil {
		return nil, err //nolint:wrapcheck // Converted to an API error by the handler.
	}

	return types.NewMigrationsResponse(ov), nil
}

// Apply applies the requested migrations, or all pending migrations if none
// were requested.
func (h *Handler) Apply(ctx context.Context, req *types.RunRequest) (*types.RunResponse, error) {
	return h.run(ctx, req, (*migration.Engine).Apply)
}

// Rollback rolls back the requested migrations.
func (h *Handler) Rollback(ctx context.Context, req *types.RunRequest) (*types.RunResponse, error) {
	return h.run(ctx, req, (*migration.Engine).Rollback)
}

func (h *Handler) run(
	ctx context.Context, req *types.RunRequest,
	runFn func(*migration.Engine, context.Context, []string, bool) (*migration.Report, error),
) (*types.RunResponse, error) {
	eng, err := h.appCtx.Engine()
	if err != nil {
		return nil, err //nolint:wrapcheck // Converted to an API error by the handler.
	}

	// Runs aren't cancelled if the client disconnects, since a run stops
	// between migrations, and the client would never learn how far it got.
	//nolint:contextcheck // Intentional.
	rep, err := runFn(eng, context.WithoutCancel(ctx), req.IDs, req.DryRun)

	// Return the partial report alongside the error.
	return types.NewRunResponse(rep), err
}
