package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"society/internal/activity"
	"society/internal/auth"
	"society/internal/cli"
	"society/internal/config"
	apphttp "society/internal/http"
	applog "society/internal/log"
	"society/internal/metrics"
	"society/internal/middleware/ratelimit"
	"society/internal/queries"
	"society/internal/services"
)

const readyRetryInterval = 2 * time.Second

func main() {
	cfg, logger := cli.LoadConfig(applog.ComponentApp, (*config.Config).Validate)

	startCtx := context.Background()
	be := cli.OpenBackend(startCtx, logger, cfg)

	recorder := activity.NewRecorder(be.Client)
	publisher, closePublisher := cli.Publisher(logger.WithComponent(applog.ComponentAMQP), cfg, recorder)

	store, cacheManager := cli.CacheStore(startCtx, logger.WithComponent(applog.ComponentCache), cfg)
	m := metrics.New()

	svc := services.New(be.Client,
		services.WithPublisher(publisher),
		services.WithLogger(logger.WithComponent(applog.ComponentServices)),
	)
	api := queries.New(svc, store,
		queries.WithStaleTime(cfg.QueryStaleTime),
		queries.WithObserver(m),
		queries.WithLogger(logger.WithComponent(applog.ComponentQueries)),
	)

	sessions := auth.NewSessions(auth.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL), cfg.CookieSecure)
	authn := auth.NewAuthenticator(be.Client, publisher).WithLogger(logger.WithComponent(applog.ComponentAuth))

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		RPS:             cfg.RateLimitRPS,
		Burst:           cfg.RateLimitBurst,
		IdleTTL:         ratelimit.DefaultConfig().IdleTTL,
		CleanupInterval: ratelimit.DefaultConfig().CleanupInterval,
	})

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		API:                      api,
		Authenticator:            authn,
		Sessions:                 sessions,
		Logger:                   logger.WithComponent(applog.ComponentHTTP),
		Metrics:                  m,
		Limiter:                  limiter,
		Ready:                    be.Client.Ping,
		DefaultMaintenanceAmount: cfg.DefaultMaintenanceAmount,
	})

	// Until the backend answers, guarded routes serve the loading
	// placeholder instead of redirecting everyone to sign-in.
	go func() {
		for {
			err := be.Client.Ping(startCtx)
			if err == nil {
				sessions.MarkReady()
				logger.Info("Backend ready")
				return
			}
			logger.Warn("Backend not ready, retrying", applog.FieldError, err)
			time.Sleep(readyRetryInterval)
		}
	}()

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		cacheManager.Stop()
		if err := closePublisher(); err != nil {
			logger.Warn("Failed to close activity publisher", applog.FieldError, err)
		}
		if err := be.Cleanup(); err != nil {
			logger.Warn("Failed to close backend", applog.FieldError, err)
		}
	})

	logger.Info("Starting society server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
