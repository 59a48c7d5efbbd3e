package api

import (
	"log/slog"
	"net/http"

	actx "go.hackfix.me/sqlmgr/app/context"
	"go.hackfix.me/sqlmgr/web/server/handler"
)

// Handler is the API endpoint handler.
type Handler struct {
	appCtx *actx.Context
	logger *slog.Logger
}

// SetupHandlers configures the web API handlers.
func SetupHandlers(appCtx *actx.Context, logger *slog.Logger) http.Handler {
	h := Handler{appCtx: appCtx, logger: logger}
	mux := http.NewServeMux()
	p := handler.NewPipeline().
		Serializer(handler.JSON()).
		ProcessRequest(handler.Validate).
		ProcessResponse(handler.NoStore)

	mux.Handle("GET /migrations", handler.Handle(h.Migrations, p))
	mux.Handle("POST /apply", handler.Handle(h.Apply, p))
	mux.Handle("POST /rollback", handler.Handle(h.Rollback, p))
	mux.Handle("GET /log", handler.Handle(h.LogTail, p))
	mux.Handle("DELETE /log", handler.Handle(h.LogClear, p))
	mux.HandleFunc("GET /log.csv", h.LogExport)

	return mux
}
