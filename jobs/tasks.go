package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/belezaflow/belezaflow/internal/booking"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDailyClose computes and stores the closing figures of one day.
	TaskDailyClose = "report:daily-close"
)

// DailyClosePayload names the day to close. An empty date means the current
// day in the worker's time zone.
type DailyClosePayload struct {
	Date string `json:"date,omitempty"`
}

// NewDailyCloseTask builds a daily close task for date (YYYY-MM-DD or empty).
func NewDailyCloseTask(date string) (*asynq.Task, error) {
	if date != "" {
		if _, err := time.Parse(booking.DateLayout, date); err != nil {
			return nil, fmt.Errorf("daily close: invalid date %q: %w", date, err)
		}
	}
	body, err := json.Marshal(DailyClosePayload{Date: date})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDailyClose, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}
