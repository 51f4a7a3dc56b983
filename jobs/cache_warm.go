package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/harborvet/harborvet/internal/authz"
	jobmetrics "github.com/harborvet/harborvet/internal/jobs"
)

// RoleWarmer loads a practice's role set, filling the cache as a side
// effect.
type RoleWarmer interface {
	Roles(ctx context.Context, practiceID *int64) ([]authz.Role, error)
}

// PracticeLister enumerates practices that have custom roles.
type PracticeLister interface {
	PracticeIDs(ctx context.Context) ([]int64, error)
}

// CacheWarmPayload optionally narrows the warmup to given practices.
type CacheWarmPayload struct {
	PracticeIDs []int64 `json:"practice_ids,omitempty"`
}

// NewCacheWarmTask constructs an Asynq task for a cache warmup. An empty
// practice list means every practice with custom roles.
func NewCacheWarmTask(practiceIDs []int64) (*asynq.Task, error) {
	body, err := json.Marshal(CacheWarmPayload{PracticeIDs: practiceIDs})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCacheWarm, body, asynq.Queue(QueueDefault)), nil
}

// NewCacheWarmHandler returns the handler for TaskCacheWarm. Warming
// after deploys and invalidation storms keeps checks off the cold path.
func NewCacheWarmHandler(warmer RoleWarmer, practices PracticeLister, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload CacheWarmPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		tracker := metrics.Track(TaskCacheWarm)
		ids := payload.PracticeIDs
		if len(ids) == 0 && practices != nil {
			listed, err := practices.PracticeIDs(ctx)
			if err != nil {
				logger.Error("cache warm list practices", slog.Any("error", err))
				return tracker.End(err)
			}
			ids = listed
		}
		if _, err := warmer.Roles(ctx, nil); err != nil {
			logger.Error("cache warm system roles", slog.Any("error", err))
			return tracker.End(err)
		}
		warmed := 1
		for _, id := range ids {
			if _, err := warmer.Roles(ctx, &id); err != nil {
				logger.Warn("cache warm practice", slog.Int64("practice_id", id), slog.Any("error", err))
				continue
			}
			warmed++
		}
		logger.Info("cache warm done", slog.Int("entries", warmed), slog.String("job", TaskCacheWarm))
		return tracker.End(nil)
	}
}
