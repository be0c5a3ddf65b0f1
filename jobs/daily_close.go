package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/belezaflow/belezaflow/internal/booking"
	jobmetrics "github.com/belezaflow/belezaflow/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// DailyCloseJob loads the persisted records and stores the closing of one day.
type DailyCloseJob struct {
	Gateway     *booking.Gateway
	StoreConfig booking.StoreConfig
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
}

// NewDailyCloseJob wires dependencies for the daily close handler.
func NewDailyCloseJob(gw *booking.Gateway, storeCfg booking.StoreConfig, logger *slog.Logger, metrics *jobmetrics.Metrics) *DailyCloseJob {
	return &DailyCloseJob{Gateway: gw, StoreConfig: storeCfg, Logger: logger, Metrics: metrics}
}

// Handle processes TaskDailyClose tasks.
func (j *DailyCloseJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Gateway == nil {
		return errors.New("daily close: handler not configured")
	}
	var payload DailyClosePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Date != "" {
		if _, err := time.Parse(booking.DateLayout, payload.Date); err != nil {
			return asynq.SkipRetry
		}
	}

	return j.metrics().Observe(ctx, TaskDailyClose, func(ctx context.Context) error {
		_, err := j.Run(ctx, payload.Date)
		return err
	})
}

// Run closes date (empty for today) and returns the stored closing.
func (j *DailyCloseJob) Run(ctx context.Context, date string) (booking.DailyClose, error) {
	start := time.Now()
	store := booking.NewStore(j.StoreConfig)
	if err := j.Gateway.Load(ctx, store); err != nil {
		j.logger().Error("load records", slog.Any("error", err))
		return booking.DailyClose{}, err
	}
	if date == "" {
		date = store.Today()
	}
	logger := j.logger().With(slog.String("date", date))

	closing := store.CloseDay(date)
	if err := j.Gateway.SaveDailyClose(ctx, closing); err != nil {
		logger.Error("daily close", slog.Any("error", err))
		return booking.DailyClose{}, err
	}
	logger.Info("daily close stored",
		slog.String("revenue", closing.Revenue.StringFixed(2)),
		slog.Int("done", closing.DoneCount),
		slog.Int("pending", closing.PendingCount),
		slog.Int("low_stock", len(closing.LowStock)),
		slog.Duration("duration", time.Since(start)))
	return closing, nil
}

func (j *DailyCloseJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDailyClose))
	}
	return slog.Default().With(slog.String("job", TaskDailyClose))
}

func (j *DailyCloseJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
