package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/lyramakesmusic/wool"
	"github.com/lyramakesmusic/wool/internal/adapters/file"
	"github.com/lyramakesmusic/wool/internal/config"
	"github.com/lyramakesmusic/wool/internal/logging"
	"github.com/lyramakesmusic/wool/pkg/adapters/memory"
	redisAdapter "github.com/lyramakesmusic/wool/pkg/adapters/redis"
	"github.com/lyramakesmusic/wool/pkg/domain"
	"github.com/lyramakesmusic/wool/pkg/observability"
	"github.com/lyramakesmusic/wool/pkg/persistence/middleware"
	"github.com/lyramakesmusic/wool/pkg/ports"
)

// Store backends selectable with --store.
const (
	StoreFile   = "file"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Options carries the persistent CLI flags.
type Options struct {
	Dir           string
	ConfigPath    string
	Store         string
	TreeName      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
	LogLevel      string
	// EncryptionKey seals stored trees with AES-256-GCM when set (hex or base64).
	EncryptionKey string
	Metrics       bool
	Hooks         domain.GenerationHooks
}

// App is a wired Service plus the pieces commands need alongside it.
type App struct {
	Service *wool.Service
	Config  *config.Store
	Metrics *observability.Metrics
	Logger  *slog.Logger

	closers []func() error
}

// Close releases backend connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// NewLogger builds the application logger for a --log-level value.
// An empty level keeps the CLI quiet.
func NewLogger(level string) (*slog.Logger, error) {
	if level == "" {
		return logging.NewNop(), nil
	}
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return logging.New(lvl), nil
}

// Build wires config, storage, locking, metrics and logging into a Service.
func Build(ctx context.Context, opts Options) (*App, error) {
	logger, err := NewLogger(opts.LogLevel)
	if err != nil {
		return nil, err
	}

	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	cfgPath := opts.ConfigPath
	if cfgPath == "" {
		cfgPath = filepath.Join(dir, config.DefaultPath)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	app := &App{Config: cfg, Logger: logger}

	store, locker, closer, err := openStore(ctx, opts, dir, cfgPath)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		app.closers = append(app.closers, closer)
	}
	if opts.EncryptionKey != "" {
		key, err := middleware.ParseKey(opts.EncryptionKey)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		seal, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		store = middleware.Chain(store, seal)
	}

	hooks := opts.Hooks.Merge(observability.LogHooks(logger))
	svcOpts := []wool.Option{
		wool.WithStore(store),
		wool.WithSettings(cfg),
		wool.WithGenerationHooks(hooks),
		wool.WithLogger(logger),
	}
	if opts.TreeName != "" {
		svcOpts = append(svcOpts, wool.WithTreeName(opts.TreeName))
	}
	if locker != nil {
		svcOpts = append(svcOpts, wool.WithLocker(locker))
	}
	if opts.Metrics {
		app.Metrics = observability.NewMetrics()
		svcOpts = append(svcOpts, wool.WithMetrics(app.Metrics))
	}

	svc, err := wool.New(svcOpts...)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Service = svc

	logger.Debug("service ready", "store", opts.Store, "encrypted", opts.EncryptionKey != "", "config", cfg.Path(), "tree", svc.TreeName())
	return app, nil
}

func openStore(ctx context.Context, opts Options, dir, cfgPath string) (ports.TreeStore, ports.DistributedLocker, func() error, error) {
	switch strings.ToLower(opts.Store) {
	case "", StoreFile:
		store := file.New(dir, file.WithReserved(sharedConfigName(dir, cfgPath)...))
		name := opts.TreeName
		if name == "" {
			name = domain.DefaultTreeName
		}
		if err := store.CheckName(name); err != nil {
			return nil, nil, nil, fmt.Errorf("tree %q: %w", name, err)
		}
		return store, nil, nil, nil
	case StoreMemory:
		return memory.NewStore(), nil, nil, nil
	case StoreRedis:
		addr := opts.RedisAddr
		if addr == "" {
			addr = "localhost:6379"
		}
		var redisOpts []redisAdapter.Option
		if opts.RedisTTL > 0 {
			redisOpts = append(redisOpts, redisAdapter.WithTTL(opts.RedisTTL))
		}
		store := redisAdapter.New(addr, opts.RedisPassword, opts.RedisDB, redisOpts...)
		if err := store.Client().Ping(ctx).Err(); err != nil {
			_ = store.Close()
			return nil, nil, nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
		}
		locker := redisAdapter.NewLocker(store.Client(), redisAdapter.DefaultPrefix)
		return store, locker, store.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown store %q (want file, memory or redis)", opts.Store)
	}
}

// sharedConfigName returns the tree name that would land on the settings
// file when both live in dir.
func sharedConfigName(dir, cfgPath string) []string {
	if filepath.Ext(cfgPath) != ".json" {
		return nil
	}
	cfgDir, err1 := filepath.Abs(filepath.Dir(cfgPath))
	treeDir, err2 := filepath.Abs(dir)
	if err1 != nil || err2 != nil || cfgDir != treeDir {
		return nil
	}
	return []string{strings.TrimSuffix(filepath.Base(cfgPath), ".json")}
}
