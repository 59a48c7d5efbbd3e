package app

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/redis/go-redis/v9"

	cfg "go.hackfix.me/sqlmgr/app/config"
	actx "go.hackfix.me/sqlmgr/app/context"
	"go.hackfix.me/sqlmgr/db"
	"go.hackfix.me/sqlmgr/migration"
)

// Option is a function that allows configuring the application.
type Option func(*App)

// WithConfig sets the configuration object. When set, the configuration file
// isn't read.
func WithConfig(cfg *cfg.Config) Option {
	return func(app *App) {
		app.ctx.Config = cfg
	}
}

// WithContext sets the main context.
func WithContext(ctx context.Context) Option {
	return func(app *App) {
		app.ctx.Ctx = ctx
	}
}

// WithDB sets the database migrations run against, instead of connecting to
// the configured one.
func WithDB(d *db.DB) Option {
	return func(app *App) {
		app.ctx.DB = d
	}
}

// WithEnv sets the process environment used by the application.
func WithEnv(env actx.Environment) Option {
	return func(app *App) {
		app.ctx.Env = env
	}
}

// WithFDs sets the file descriptors used by the application.
func WithFDs(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(app *App) {
		app.ctx.Stdin = stdin
		app.ctx.Stdout = stdout
		app.ctx.Stderr = stderr
	}
}

// WithFS sets the filesystem used by the application.
func WithFS(fs vfs.FileSystem) Option {
	return func(app *App) {
		app.ctx.FS = fs
	}
}

// WithHooks sets the hooks applied to discovered migrations. This is how Go
// callbacks are attached to migrations defined in files.
func WithHooks(hooks ...migration.Hook) Option {
	return func(app *App) {
		app.ctx.Hooks = append(app.ctx.Hooks, hooks...)
	}
}

// WithLogger initializes the logger used by the application.
func WithLogger(_, isStderrTTY bool) Option {
	return func(app *App) {
		lvl := &slog.LevelVar{}
		lvl.Set(slog.LevelInfo)
		logger := slog.New(
			tint.NewHandler(app.ctx.Stderr, &tint.Options{
				Level:      lvl,
				NoColor:    !isStderrTTY,
				TimeFormat: "2006-01-02 15:04:05.000",
			}),
		)
		app.logLevel = lvl
		app.ctx.Logger = logger
		slog.SetDefault(logger)
	}
}

// WithRedis sets the Redis client used by the redis state and lock backends,
// instead of connecting to the configured server.
func WithRedis(client redis.UniversalClient) Option {
	return func(app *App) {
		app.ctx.Redis = client
	}
}

// WithTimeNow sets the function used to retrieve the current system time.
func WithTimeNow(timeNowFn func() time.Time) Option {
	return func(app *App) {
		app.ctx.TimeNow = timeNowFn
	}
}
