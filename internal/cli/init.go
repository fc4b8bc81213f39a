// Package cli provides common CLI initialization utilities.
// This package consolidates repeated initialization patterns across
// cmd/society, cmd/society-worker, and cmd/societyctl.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"society/internal/activity"
	"society/internal/amqp"
	"society/internal/backend/factory"
	"society/internal/cache"
	"society/internal/config"
	applog "society/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from cfg and installs it as the
// slog default.
func SetupLogger(cfg *config.Config, component string) *applog.Logger {
	lc := applog.DefaultConfig()
	lc.Level = cfg.SlogLevel()
	lc.File = cfg.LogFile
	lc.Component = component
	logger := applog.New(lc).WithComponent(component)
	applog.SetDefault(logger)
	return logger
}

// LoadConfig loads configuration, builds the logger and runs validate.
// Exits the process on validation failure.
func LoadConfig(component string, validate func(*config.Config) error) (*config.Config, *applog.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	logger := SetupLogger(cfg, component)
	if validate != nil {
		if err := validate(cfg); err != nil {
			logger.Error("Configuration validation failed", applog.FieldError, err)
			os.Exit(1)
		}
	}
	return cfg, logger
}

// OpenBackend builds the configured backend client.
// Exits the process on failure.
func OpenBackend(ctx context.Context, logger *applog.Logger, cfg *config.Config) *factory.Result {
	bc, err := factory.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	res, err := factory.New(logger.Logger).CreateBackend(ctx, bc)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	return res
}

// Publisher returns the AMQP client when a broker is configured, otherwise
// the in-process recorder. The returned close func is never nil.
func Publisher(logger *applog.Logger, cfg *config.Config, recorder *activity.Recorder) (activity.Publisher, func() error) {
	if cfg.AMQPURL == "" {
		logger.Info("No AMQP broker configured, recording activity in-process")
		return recorder, func() error { return nil }
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("AMQP unavailable, recording activity in-process", applog.FieldError, err)
		return recorder, func() error { return nil }
	}
	logger.Info("Publishing activity over AMQP", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client, client.Close
}

// CacheStore returns a Redis store when REDIS_URL is set and reachable,
// otherwise a bounded in-memory store. Either way the returned manager owns
// its cleanup and shutdown.
func CacheStore(ctx context.Context, logger *applog.Logger, cfg *config.Config) (cache.Store, *cache.Manager) {
	manager := cache.NewManager()
	if cfg.RedisURL != "" {
		rs, err := cache.NewRedisStore(ctx, cfg.RedisURL, "society:")
		if err == nil {
			manager.OnStop(rs.Close)
			logger.Info("Using Redis query cache")
			return rs, manager
		}
		logger.Warn("Redis unavailable, falling back to memory cache", applog.FieldError, err)
	}
	ms := cache.NewMemoryStore(cacheSize)
	manager.Register(ms)
	manager.StartCleanup(cfg.CacheCleanupInterval)
	return ms, manager
}

const cacheSize = 256

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
