package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/ludus"
	"github.com/aretw0/ludus/internal/config"
	"github.com/aretw0/ludus/internal/logging"
	"github.com/aretw0/ludus/internal/runtime"
	"github.com/aretw0/ludus/pkg/adapters/file"
	"github.com/aretw0/ludus/pkg/adapters/memory"
	"github.com/aretw0/ludus/pkg/adapters/redis"
	"github.com/aretw0/ludus/pkg/adapters/sqlite"
	"github.com/aretw0/ludus/pkg/domain"
	"github.com/aretw0/ludus/pkg/observability"
	"github.com/aretw0/ludus/pkg/persistence/middleware"
	"github.com/aretw0/ludus/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App is a configured engine plus the resources backing it.
type App struct {
	*ludus.Engine

	Config  *config.Config
	Logger  *slog.Logger
	Metrics *observability.Metrics
	// Gatherer serves Metrics over /metrics.
	Gatherer prometheus.Gatherer
	// Watch reports changed artifact keys when the source supports it.
	Watch func(ctx context.Context) (<-chan domain.Key, error)

	redis   *redis.Store
	closers []io.Closer
}

type watchable interface {
	Watch(ctx context.Context) (<-chan domain.Key, error)
}

// NewLogger builds the application logger from the log settings. Logs go
// to stderr so stdout stays free for frames and JSON-RPC.
func NewLogger(cfg config.LogConfig) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewWith(os.Stderr, level, cfg.Format)
}

// Open wires stores, sources, middleware, locking and metrics from cfg.
func Open(cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger}

	store, err := app.openStore()
	if err != nil {
		app.Close()
		return nil, err
	}
	source, err := app.openSource()
	if err != nil {
		app.Close()
		return nil, err
	}
	if w, ok := source.(watchable); ok {
		app.Watch = w.Watch
	}

	if cfg.Security.EncryptionKey != "" {
		mw, err := encryption(cfg.Security)
		if err != nil {
			app.Close()
			return nil, err
		}
		store = middleware.Chain(store, mw)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.Metrics = observability.NewMetrics(reg)
	app.Gatherer = reg

	opts := []ludus.Option{
		ludus.WithSource(source),
		ludus.WithStore(store),
		ludus.WithLogger(logger),
		ludus.WithMetrics(app.Metrics),
		ludus.WithLifecycleHooks(observability.LogHooks(logger)),
		ludus.WithCacheCapacity(cfg.Engine.CacheCapacity),
		ludus.WithLockTTL(cfg.Engine.LockTTL),
		ludus.WithRuntimeOptions(runtime.WithMaxIterations(cfg.Engine.MaxIterations)),
	}
	if app.redis != nil {
		opts = append(opts, ludus.WithLocker(redis.NewLocker(app.redis.Client(), "ludus:lock:")))
	}

	engine, err := ludus.New(opts...)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Engine = engine
	return app, nil
}

func (app *App) openStore() (ports.StateStore, error) {
	cfg := app.Config.Store
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.NewStore(), nil
	case config.BackendFile:
		return file.New(cfg.Path), nil
	case config.BackendRedis:
		s := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			redis.WithTTL(cfg.TTL),
			redis.WithPrefix(cfg.RedisPrefix),
		)
		app.redis = s
		app.closers = append(app.closers, s)
		return s, nil
	case config.BackendSQLite:
		return app.openSQLite(cfg.Path)
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

func (app *App) openSource() (ports.ArtifactSource, error) {
	cfg := app.Config.Artifacts
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.NewSource(), nil
	case config.BackendFile:
		return file.NewSource(cfg.Path), nil
	case config.BackendLoam:
		return ludus.OpenRepository(cfg.Path, cfg.ReadOnly)
	case config.BackendSQLite:
		s, err := app.openSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s.Artifacts(), nil
	}
	return nil, fmt.Errorf("unknown artifacts backend %q", cfg.Backend)
}

// openSQLite shares one handle when sessions and artifacts use the same file.
func (app *App) openSQLite(path string) (*sqlite.Store, error) {
	for _, c := range app.closers {
		if s, ok := c.(*sqliteHandle); ok && s.path == path {
			return s.Store, nil
		}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	s, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, &sqliteHandle{Store: s, path: path})
	return s, nil
}

type sqliteHandle struct {
	*sqlite.Store
	path string
}

func encryption(cfg config.SecurityConfig) (middleware.Middleware, error) {
	active, err := middleware.ParseKey(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key: %w", err)
	}
	var fallback [][]byte
	for i, k := range cfg.FallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			return nil, fmt.Errorf("fallback key %d: %w", i, err)
		}
		fallback = append(fallback, key)
	}
	return middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    active,
		FallbackKeys: fallback,
	})
}

// Close releases database and network handles.
func (app *App) Close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		errs = append(errs, app.closers[i].Close())
	}
	app.closers = nil
	return errors.Join(errs...)
}
