package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/idanmel/skyarena/internal/console"
	"github.com/idanmel/skyarena/internal/factory"
	"github.com/idanmel/skyarena/internal/relay"
	"github.com/idanmel/skyarena/internal/status"
	redisstorage "github.com/idanmel/skyarena/internal/storage/redis"
)

func main() {
	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Build factory config from environment
	cfg := factory.Config{
		Logger:      logger,
		StorageType: os.Getenv("STORAGE_TYPE"),
	}

	// Configure Redis if storage type is redis
	if cfg.StorageType == factory.StorageTypeRedis {
		redisURL := os.Getenv("REDIS_URL")
		if redisURL == "" {
			logger.Error("REDIS_URL required when STORAGE_TYPE=redis")
			os.Exit(1)
		}
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = redisURL
		cfg.RedisConfig = &redisCfg
	}

	app, err := factory.New(cfg)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = app.Close() }()

	tcpAddr := envOr("SKYARENA_TCP_ADDR", ":33445")
	udpAddr := envOr("SKYARENA_UDP_ADDR", ":33446")
	opsAddr := envOr("SKYARENA_OPS_ADDR", ":8080")

	// Bind/listen failures are the only process-fatal errors.
	ln, err := net.Listen("tcp", tcpAddr)
	if err != nil {
		logger.Error("tcp listen failed", slog.String("addr", tcpAddr), slog.String("error", err.Error()))
		os.Exit(1)
	}

	udpConn, err := listenUDP(udpAddr)
	if err != nil {
		logger.Error("udp bind failed", slog.String("addr", udpAddr), slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var wg sync.WaitGroup

	// UDP relay: ingest + broadcast loops
	worldRelay := relay.New(udpConn, app.Registry, logger, relay.DefaultConfig())
	wg.Add(1)
	go func() {
		defer wg.Done()
		worldRelay.Run(ctx)
		_ = udpConn.Close()
	}()

	// Ops HTTP endpoint
	opsServer := &http.Server{
		Addr:    opsAddr,
		Handler: status.New(logger, app.Registry, app.Server).Handler(),
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server failed", slog.String("error", err.Error()))
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = opsServer.Shutdown(shutdownCtx)
	}()

	// Operator console on stdin; EXIT cancels the shared context
	opConsole := console.New(app.AccountService, logger, os.Stdin, os.Stdout, cancel)
	go opConsole.Run(ctx)

	logger.Info("skyarena server started",
		slog.String("tcp", tcpAddr),
		slog.String("udp", udpAddr),
		slog.String("ops", opsAddr),
		slog.String("storage", storageName(cfg.StorageType)),
	)

	// Accept loop blocks until shutdown, then drains sessions
	if err := app.Server.Serve(ctx, ln); err != nil {
		logger.Error("server stopped with error", slog.String("error", err.Error()))
	}

	wg.Wait()
	logger.Info("skyarena server stopped")
}

func listenUDP(addr string) (*net.UDPConn, error) {
	resolved, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	return net.ListenUDP("udp", resolved)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func storageName(t string) string {
	if t == "" {
		return factory.StorageTypeMemory
	}
	return t
}
