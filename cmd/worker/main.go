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

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/belezaflow/belezaflow/internal/app"
	"github.com/belezaflow/belezaflow/internal/booking"
	jobmetrics "github.com/belezaflow/belezaflow/internal/jobs"
	"github.com/belezaflow/belezaflow/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if cfg.KVBackend == app.BackendMemory {
		logger.Error("worker needs a shared kv store", slog.String("backend", cfg.KVBackend))
		os.Exit(1)
	}

	kvStore, closeKV, err := app.OpenKV(ctx, cfg, logger)
	if err != nil {
		logger.Error("open kv store", slog.String("backend", cfg.KVBackend), slog.Any("error", err))
		os.Exit(1)
	}
	defer closeKV()

	gateway := booking.NewGateway(kvStore, cfg.KVPrefix)
	registry := prometheus.NewRegistry()
	closeJob := jobs.NewDailyCloseJob(gateway, cfg.StoreConfig(), logger, jobmetrics.NewMetrics(registry))

	closeTask, err := jobs.NewDailyCloseTask("")
	if err != nil {
		logger.Error("build daily close task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Location:  cfg.Location(),
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDailyClose, Handler: closeJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.DailyCloseCron, Task: closeTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return worker.Run(groupCtx)
	})
	if cfg.WorkerMetricsAddr != "" {
		mux := chi.NewRouter()
		mux.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		group.Go(func() error {
			logger.Info("worker metrics listening", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		group.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
