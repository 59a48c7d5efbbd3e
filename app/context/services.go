package context

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"go.hackfix.me/sqlmgr/app/config"
	"go.hackfix.me/sqlmgr/db"
	dbtypes "go.hackfix.me/sqlmgr/db/types"
	"go.hackfix.me/sqlmgr/lock"
	"go.hackfix.me/sqlmgr/metrics"
	"go.hackfix.me/sqlmgr/migration"
	"go.hackfix.me/sqlmgr/state"
)

// Database returns the connection to the target database, opening and
// initializing it on first use.
func (c *Context) Database() (*db.DB, error) {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.database()
}

func (c *Context) database() (*db.DB, error) {
	if c.DB == nil {
		d, err := c.openDatabase()
		if err != nil {
			return nil, err
		}
		c.DB = d
	}

	if !c.dbReady {
		if err := c.DB.Init(c.Ctx, c.Version.Semantic, c.Logger); err != nil {
			return nil, err //nolint:wrapcheck // Already descriptive.
		}
		c.dbReady = true
	}

	return c.DB, nil
}

func (c *Context) openDatabase() (*db.DB, error) {
	dialect := c.Config.Database.Driver.V
	if !c.Config.Database.DSN.Valid {
		return nil, fmt.Errorf("no DSN configured for %s database", dialect)
	}
	dsn := c.Config.Database.DSN.V

	if dialect == dbtypes.DialectSQLite && !strings.HasPrefix(dsn, "file:") &&
		!strings.Contains(dsn, ":memory:") {
		path, _, _ := strings.Cut(dsn, "?")
		if err := c.FS.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed creating database directory: %w", err)
		}
	}

	d, err := db.Open(c.Ctx, dialect, dsn, c.TimeNow)
	if err != nil {
		return nil, err //nolint:wrapcheck // Already descriptive.
	}
	c.closers = append(c.closers, d.Close)

	return d, nil
}

// RedisClient returns the client of the configured Redis server.
func (c *Context) RedisClient() (redis.UniversalClient, error) {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.redisClient()
}

func (c *Context) redisClient() (redis.UniversalClient, error) {
	if c.Redis != nil {
		return c.Redis, nil
	}

	if !c.Config.Redis.Address.Valid {
		return nil, errors.New("no Redis address configured")
	}
	opts := &redis.UniversalOptions{Addrs: strings.Split(c.Config.Redis.Address.V, ",")}
	if c.Config.Redis.Password.Valid {
		opts.Password = c.Config.Redis.Password.V
	}
	if c.Config.Redis.DB.Valid {
		opts.DB = c.Config.Redis.DB.V
	}

	client := redis.NewUniversalClient(opts)
	if err := client.Ping(c.Ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed connecting to Redis: %w", err)
	}
	c.closers = append(c.closers, client.Close)
	c.Redis = client

	return client, nil
}

// StateStore returns the store of the applied set and the audit log.
func (c *Context) StateStore() (*state.Store, error) {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.stateStore()
}

func (c *Context) stateStore() (*state.Store, error) {
	if c.store != nil {
		return c.store, nil
	}

	var backend state.Backend
	switch c.Config.State.Backend.V {
	case config.StateFile:
		backend = state.NewFileBackend(c.FS, c.Config.State.Path.V)
	case config.StateRedis:
		client, err := c.redisClient()
		if err != nil {
			return nil, err
		}
		backend = state.NewRedisBackend(client, c.Config.Redis.Prefix.V)
	default:
		d, err := c.database()
		if err != nil {
			return nil, err
		}
		backend = db.NewOptionsBackend(d)
	}

	c.store = state.New(backend, state.WithLogCap(c.Config.Migrations.LogCap.V))

	return c.store, nil
}

func (c *Context) locker() (migration.Locker, error) {
	switch c.Config.Lock.Backend.V {
	case config.LockLocal:
		return lock.NewLocal(), nil
	case config.LockRedis:
		client, err := c.redisClient()
		if err != nil {
			return nil, err
		}
		return lock.NewRedis(client, lock.WithRedisPrefix(c.Config.Redis.Prefix.V+"lock:")), nil
	default:
		d, err := c.database()
		if err != nil {
			return nil, err
		}
		if d.Dialect() == dbtypes.DialectPostgres {
			return lock.NewPostgres(d.DB), nil
		}
		//nolint:wrapcheck // Already descriptive.
		return lock.NewTable(c.Ctx, d.DB, d.Dialect(), lock.WithTableTimeNow(c.TimeNow))
	}
}

// Metrics returns the collector of migration run metrics, and the Prometheus
// registry it's registered with.
func (c *Context) Metrics() (*metrics.Collector, *prometheus.Registry, error) {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.metrics()
}

func (c *Context) metrics() (*metrics.Collector, *prometheus.Registry, error) {
	if c.collect != nil {
		return c.collect, c.registry, nil
	}

	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, nil, fmt.Errorf("failed registering metrics: %w", err)
	}
	col := metrics.NewCollector()
	if err := col.Register(reg); err != nil {
		return nil, nil, fmt.Errorf("failed registering metrics: %w", err)
	}
	c.collect, c.registry = col, reg

	return col, reg, nil
}

// Engine returns the migration engine, building it and the services it
// depends on on first use.
func (c *Context) Engine() (*migration.Engine, error) {
	c.mx.Lock()
	defer c.mx.Unlock()

	if c.engine != nil {
		return c.engine, nil
	}

	d, err := c.database()
	if err != nil {
		return nil, err
	}
	store, err := c.stateStore()
	if err != nil {
		return nil, err
	}
	locker, err := c.locker()
	if err != nil {
		return nil, err
	}
	col, _, err := c.metrics()
	if err != nil {
		return nil, err
	}

	reg := migration.NewRegistry(c.FS, c.Config.Migrations.Dir.V, c.Hooks...)
	c.engine = migration.New(reg, store, d,
		migration.WithLocker(locker),
		migration.WithLockTimeout(c.Config.Lock.Timeout.V),
		migration.WithStatementTimeout(c.Config.Execution.StatementTimeout.V),
		migration.WithObserver(col),
		migration.WithLogger(c.Logger),
		migration.WithTimeNow(c.TimeNow),
	)

	return c.engine, nil
}

// Close releases all connections opened by the context.
func (c *Context) Close() error {
	c.mx.Lock()
	defer c.mx.Unlock()

	var errs *multierror.Error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	c.closers = nil

	return errs.ErrorOrNil()
}
