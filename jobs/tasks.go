// Package jobs runs background maintenance for the authorization service
// on Asynq.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/harborvet/harborvet/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOverrideExpiry sweeps permission overrides past their expiry.
	TaskOverrideExpiry = "override:expire"
	// TaskCacheWarm preloads role sets into the cache.
	TaskCacheWarm = "authz:cache-warm"
)

// OverrideExpirer flips overdue overrides to expired.
type OverrideExpirer interface {
	ExpireDue(ctx context.Context) (int64, error)
}

// OverrideExpiryPayload carries scheduling metadata.
type OverrideExpiryPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewOverrideExpiryTask constructs an Asynq task for the expiry sweep.
func NewOverrideExpiryTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(OverrideExpiryPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOverrideExpiry, body, asynq.Queue(QueueDefault)), nil
}

// NewOverrideExpiryHandler returns the handler for TaskOverrideExpiry.
// Reads already ignore expired overrides; the sweep keeps the status
// column in sync for reporting.
func NewOverrideExpiryHandler(expirer OverrideExpirer, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload OverrideExpiryPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		tracker := metrics.Track(TaskOverrideExpiry)
		n, err := expirer.ExpireDue(ctx)
		if err != nil {
			logger.Error("override expiry sweep", slog.Any("error", err))
			return tracker.End(err)
		}
		metrics.AddExpiredOverrides(n)
		logger.Info("override expiry sweep done", slog.Int64("expired", n), slog.String("job", TaskOverrideExpiry))
		return tracker.End(nil)
	}
}
