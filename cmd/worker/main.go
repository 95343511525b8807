package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/neurotask/internal/bootstrap"
	"github.com/kirillkom/neurotask/internal/config"
	natsqueue "github.com/kirillkom/neurotask/internal/infrastructure/queue/nats"
	"github.com/kirillkom/neurotask/internal/observability/logging"
	"github.com/kirillkom/neurotask/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: "worker", Worker: true})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	server := natsqueue.NewServer(app.NATS, app.Pipeline, app.Storage, natsqueue.ServerOptions{
		Subject:        cfg.NATSSubject,
		QueueGroup:     cfg.NATSQueueGroup,
		RequestTimeout: time.Duration(cfg.ExtractTimeoutSeconds) * time.Second,
		Concurrency:    cfg.WorkerConcurrency,
		Observer:       workerMetrics,
		Logger:         logger,
	})

	logger.Info("worker_serving", "subject", cfg.NATSSubject, "queue_group", cfg.NATSQueueGroup)
	if err := server.Serve(ctx); err != nil {
		logger.Error("worker_serve_failed", "error", err)
		os.Exit(1)
	}
}
