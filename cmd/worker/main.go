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

	"github.com/kirillkom/photoblog-ai/internal/bootstrap"
	"github.com/kirillkom/photoblog-ai/internal/config"
	"github.com/kirillkom/photoblog-ai/internal/observability/logging"
	"github.com/kirillkom/photoblog-ai/internal/observability/metrics"
)

const serviceName = "photoblog-ai-worker"

func main() {
	cfg := config.Load()
	logger := logging.New(os.Stdout, serviceName, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, workerMetrics.AIMetrics, logger, bootstrap.Options{})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()

	hook := app.UploadHook(workerMetrics)
	logger.Info("worker_subscribing", "subject", cfg.NATSSubject, "fields", app.AutoFields.String())
	err = app.Queue.SubscribePhotoUploaded(ctx, func(handlerCtx context.Context, photoID string) error {
		syncCtx, cancel := context.WithTimeout(handlerCtx, cfg.RegenBatchTimeout)
		defer cancel()
		return hook.HandleUploaded(syncCtx, photoID)
	})
	if err != nil {
		logger.Error("worker_subscription_failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker_metrics_shutdown_failed", "error", err)
	}
}
