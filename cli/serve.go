package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	actx "go.hackfix.me/sqlmgr/app/context"
	"go.hackfix.me/sqlmgr/web/server"
)

// Serve starts the web server.
type Serve struct {
	Address  string `arg:"" optional:"" help:"[host]:port to listen on. Defaults to the server.address configuration value, or :8080."`
	APIToken string `name:"api-token" help:"Bearer token required by the API. The API is unauthenticated if empty."`
}

// Run the serve command.
func (c *Serve) Run(appCtx *actx.Context) error {
	addr := c.Address
	if addr == "" {
		addr = ":8080"
	}

	// Fail early if the configured services can't be initialized.
	if _, err := appCtx.Engine(); err != nil {
		return err
	}

	srv, err := server.New(appCtx, addr, c.APIToken)
	if err != nil {
		return err
	}
	if c.APIToken == "" {
		slog.Warn("the API is unauthenticated, set an API token to protect it")
	}

	// Gracefully shutdown the server if a process signal is received, or the
	// main context is done.
	srvDone := make(chan error)
	go func() {
		srvErr := srv.ListenAndServe()
		slog.Debug("web server shutdown")
		srvDone <- srvErr
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case s := <-sigCh:
		slog.Debug("process received signal", "signal", s)
	case <-appCtx.Ctx.Done():
		slog.Debug("app context is done")
	case srvErr := <-srvDone:
		if srvErr != nil && !errors.Is(srvErr, http.ErrServerClosed) {
			return fmt.Errorf("web server error: %w", srvErr)
		}
		return nil
	}

	// Allow in-flight migration runs some time to finish.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(appCtx.Ctx), time.Minute)
	defer cancel()
	if err = srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed shutting down web server: %w", err)
	}

	return nil
}
