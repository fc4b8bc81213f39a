package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"society/internal/activity"
	"society/internal/amqp"
	"society/internal/cli"
	"society/internal/config"
	applog "society/internal/log"
	"society/internal/metrics"
	"society/internal/sheets"
	gsheet "society/internal/sheets/google"
	"society/internal/worker"
)

func main() {
	cfg, logger := cli.LoadConfig(applog.ComponentWorker, (*config.Config).ValidateCore)
	logger.Info("Starting society-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	startCtx := context.Background()
	be := cli.OpenBackend(startCtx, logger, cfg)

	// Google Sheets mirror is optional
	var mirror sheets.ActivityWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(startCtx, gsheet.Options{
			SpreadsheetID: cfg.GoogleSpreadsheetID,
			ActivitySheet: cfg.GoogleActivitySheet,
			ClientJSON:    cfg.GoogleOAuthClientJSON,
			ClientFile:    cfg.GoogleOAuthClientFile,
			TokenJSON:     cfg.GoogleOAuthTokenJSON,
			TokenFile:     cfg.GoogleOAuthTokenFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			os.Exit(1)
		}
		mirror = client
		logger.Info("Mirroring activity to Google Sheets", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}

	m := metrics.New()
	aw := worker.NewActivityWorker(activity.NewRecorder(be.Client), mirror, worker.WithObserver(m))

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	metricsSrv := &http.Server{
		Addr:              cfg.WorkerMetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", applog.FieldError, err, "addr", cfg.WorkerMetricsAddr)
		}
	}()

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logger.Warn("Metrics server shutdown error", applog.FieldError, err)
		}
		if err := amqpClient.Close(); err != nil {
			logger.Warn("Failed to close AMQP client", applog.FieldError, err)
		}
		if err := be.Cleanup(); err != nil {
			logger.Warn("Failed to close backend", applog.FieldError, err)
		}
	})

	go func() {
		err := amqpClient.ConsumeWithRetry(ctx, cfg.WorkerPrefetch, aw.HandleActivityMessage)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", applog.FieldError, err)
		}
	}()

	logger.Info("Worker consuming activity events", "queue", cfg.AMQPQueue, "prefetch", cfg.WorkerPrefetch)
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
