package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erazemk/integration-api/internal/api"
	"github.com/erazemk/integration-api/internal/cache"
	"github.com/erazemk/integration-api/internal/config"
	"github.com/erazemk/integration-api/internal/db"
	"github.com/erazemk/integration-api/internal/logging"
	"github.com/erazemk/integration-api/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Args[1:], os.Getenv, os.Stdout)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	logger, closeLog, err := logging.New(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer closeLog()
	zap.ReplaceGlobals(logger)

	_, statErr := os.Stat(cfg.DBPath)
	fresh := errors.Is(statErr, os.ErrNotExist)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", zap.Error(err))
		return 1
	}
	defer database.Close()

	// Ensure schema exists (idempotent).
	if err := db.EnsureSchema(database); err != nil {
		logger.Error("failed to ensure database schema", zap.Error(err))
		return 1
	}
	logger.Info("database ready", zap.String("path", cfg.DBPath), zap.Bool("created", fresh))

	items := store.NewItems(database)
	if fresh && cfg.Seed {
		created, err := items.Seed(context.Background(), store.SampleItems())
		if err != nil {
			logger.Error("failed to seed database", zap.Error(err))
			return 1
		}
		logger.Info("database seeded", zap.Int("items", len(created)))
	}

	var itemStore api.ItemStore = items
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = cache.Connect(context.Background(), cfg.RedisAddr)
		if err != nil {
			logger.Error("failed to connect to redis", zap.Error(err))
			return 1
		}
		itemStore = cache.New(items, redisClient, logger)
		logger.Info("item cache enabled", zap.String("redis", cfg.RedisAddr))
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewRouter(itemStore, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server started", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Resources are released in order: stop accepting requests first, then
	// close the cache; the database is closed by the deferred call above.
	wait := gfshutdown.GracefulShutdown(context.Background(), shutdownTimeout, map[string]gfshutdown.Operation{
		"http-server": func(ctx context.Context) error {
			logger.Info("shutdown signal received")
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("shutting down server: %w", err)
			}
			if redisClient != nil {
				if err := redisClient.Close(); err != nil {
					return fmt.Errorf("closing redis: %w", err)
				}
			}
			return nil
		},
	})

	select {
	case err := <-serveErr:
		logger.Error("server error", zap.Error(err))
		return 1
	case code := <-wait:
		logger.Info("server stopped, closing database", zap.Int("exit_code", code))
		return code
	}
}
