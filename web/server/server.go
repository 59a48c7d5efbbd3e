package server

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	actx "go.hackfix.me/sqlmgr/app/context"
	"go.hackfix.me/sqlmgr/web/server/api/v1"
	"go.hackfix.me/sqlmgr/web/server/middleware"
)

// Server is a wrapper around http.Server with some custom behavior.
type Server struct {
	*http.Server
	logger *slog.Logger
}

// New returns a new web Server instance that will listen on addr. If apiToken
// is not empty, API requests must provide it as a bearer token.
func New(appCtx *actx.Context, addr, apiToken string) (*Server, error) {
	logger := appCtx.Logger.With("component", "web-server")
	h, err := SetupHandlers(appCtx, apiToken, logger)
	if err != nil {
		return nil, err
	}

	srv := &Server{
		Server: &http.Server{
			Handler:           h,
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			// Migration runs can take a long time.
			WriteTimeout: time.Hour,
		},
		logger: logger,
	}

	return srv, nil
}

// ListenAndServe starts the HTTP server. It stores the actual listen address,
// which is convenient when the address is dynamically determined by the
// system (e.g. ':0').
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		//nolint:wrapcheck // This is fine.
		return err
	}

	s.Addr = ln.Addr().String()
	s.logger.Info("started listener", "address", s.Addr)

	//nolint:wrapcheck // This is fine.
	return s.Serve(ln)
}

// SetupHandlers configures the server HTTP handlers.
func SetupHandlers(appCtx *actx.Context, apiToken string, logger *slog.Logger) (http.Handler, error) {
	_, reg, err := appCtx.Metrics()
	if err != nil {
		return nil, err //nolint:wrapcheck // Already descriptive.
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", middleware.Chain(
		middleware.BearerToken(apiToken),
		http.StripPrefix("/api/v1", api.SetupHandlers(appCtx, logger)),
	))
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	return middleware.Logger(logger)(mux), nil
}
