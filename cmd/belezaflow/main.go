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

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/belezaflow/belezaflow/internal/app"
	"github.com/belezaflow/belezaflow/internal/booking"
	"github.com/belezaflow/belezaflow/internal/observability"
	"github.com/belezaflow/belezaflow/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	kvStore, closeKV, err := app.OpenKV(ctx, cfg, logger)
	if err != nil {
		logger.Error("open kv store", slog.String("backend", cfg.KVBackend), slog.Any("error", err))
		os.Exit(1)
	}
	defer closeKV()

	store := booking.NewStore(cfg.StoreConfig())
	gateway := booking.NewGateway(kvStore, cfg.KVPrefix)
	report, err := gateway.LoadWithReport(ctx, store)
	if err != nil {
		// Starting empty would let the first save overwrite the stored records.
		logger.Error("load records", slog.Any("error", err))
		os.Exit(1)
	}
	if report.Rejected() > 0 {
		logger.Warn("records set aside",
			slog.Int("appointments", report.RejectedAppointments),
			slog.Int("products", report.RejectedProducts))
	}
	logger.Info("records loaded",
		slog.Int("appointments", len(store.Appointments())),
		slog.Int("products", len(store.Products())))

	metrics := observability.NewMetrics()
	saver := booking.NewSaver(store, gateway, booking.SaverConfig{
		Debounce:   cfg.SaveDebounce,
		RetryAfter: cfg.SaveRetry,
		Logger:     logger,
		Observer:   metrics,
	})
	detach := saver.Attach()
	defer detach()
	metrics.WatchRecords(store, saver)

	var queue booking.DailyCloseQueue
	var jobHandler *jobs.Handler
	if cfg.KVBackend != app.BackendMemory {
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		client := jobs.NewClient(redisOpts)
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("asynq client close", slog.Any("error", err))
			}
		}()
		inspector := asynq.NewInspector(redisOpts)
		defer func() {
			_ = inspector.Close()
		}()
		queue = client
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	bookingHandler := booking.NewHandler(logger, store, gateway, queue)
	bookingHandler.SetMutationLimit(cfg.MutationRateLimit)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		BookingHandler: bookingHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
		RequestLog:     true,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return saver.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	runErr := g.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := saver.Flush(flushCtx); err != nil {
		logger.Error("final save", slog.Any("error", err))
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("http server", slog.Any("error", runErr))
		os.Exit(1)
	}
}
