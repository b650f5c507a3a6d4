package factory

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/idanmel/skyarena/internal/dependencies/clock"
	"github.com/idanmel/skyarena/internal/dependencies/random"
	"github.com/idanmel/skyarena/internal/handshake"
	"github.com/idanmel/skyarena/internal/server"
	"github.com/idanmel/skyarena/internal/services/account"
	"github.com/idanmel/skyarena/internal/services/shop"
	"github.com/idanmel/skyarena/internal/storage"
	"github.com/idanmel/skyarena/internal/storage/memory"
	redisstorage "github.com/idanmel/skyarena/internal/storage/redis"
	"github.com/idanmel/skyarena/internal/world"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// Config holds configuration for building the application
type Config struct {
	Logger *slog.Logger

	// StorageType selects the account store backend: memory (default) or redis.
	StorageType string

	// RedisConfig is required when StorageType is redis.
	RedisConfig *redisstorage.Config

	AccountConfig account.Config
	ServerConfig  server.Config
}

// Application holds the wired object graph.
type Application struct {
	Logger         *slog.Logger
	Store          storage.AccountStore
	Clock          clock.Clock
	Random         random.Random
	AccountService *account.Service
	ShopService    *shop.Service
	Registry       *world.Registry
	Handshake      *handshake.Service
	Server         *server.Server

	closers []io.Closer
}

// New builds the application from configuration.
func New(cfg Config) (*Application, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	app := &Application{
		Logger: cfg.Logger,
		Clock:  clock.New(),
		Random: random.New(),
	}

	switch cfg.StorageType {
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, fmt.Errorf("redis storage selected but no redis config given")
		}
		store, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		app.Store = store
		app.closers = append(app.closers, store)
	case StorageTypeMemory, "":
		app.Store = memory.New()
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.StorageType)
	}

	if cfg.AccountConfig == (account.Config{}) {
		cfg.AccountConfig = account.DefaultConfig()
	}

	hs, err := handshake.New()
	if err != nil {
		return nil, err
	}

	app.Handshake = hs
	app.Registry = world.NewRegistry()
	app.AccountService = account.New(app.Store, app.Clock, cfg.Logger, cfg.AccountConfig)
	app.ShopService = shop.New(app.Store, cfg.Logger, shop.DefaultCatalog())
	app.Server = server.New(hs, app.AccountService, app.ShopService, app.Registry,
		app.Clock, cfg.Logger, cfg.ServerConfig)

	return app, nil
}

// Close releases resources held by the application.
func (a *Application) Close() error {
	var firstErr error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
