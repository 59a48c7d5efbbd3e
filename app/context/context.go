package context

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"go.hackfix.me/sqlmgr/app/config"
	"go.hackfix.me/sqlmgr/db"
	"go.hackfix.me/sqlmgr/metrics"
	"go.hackfix.me/sqlmgr/migration"
	"go.hackfix.me/sqlmgr/state"
)

// Context contains common objects used by the application. It is passed around
// the application to avoid direct dependencies on external systems, and make
// testing easier.
type Context struct {
	Ctx     context.Context  // global context
	FS      vfs.FileSystem   // filesystem
	Env     Environment      // process environment
	Logger  *slog.Logger     // global logger
	TimeNow func() time.Time // current time
	Config  *config.Config

	// Standard streams
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Hooks are registered with the migration registry, and can modify the
	// discovered migrations, e.g. to attach Go callbacks.
	Hooks []migration.Hook

	// Metadata
	Version *VersionInfo
	DataDir string

	// Lazily initialized services. DB and Redis can be preset, in which case
	// they're used instead of connecting with the configured settings.
	DB    *db.DB
	Redis redis.UniversalClient

	mx       sync.Mutex
	dbReady  bool
	store    *state.Store
	engine   *migration.Engine
	collect  *metrics.Collector
	registry *prometheus.Registry
	closers  []func() error
}
