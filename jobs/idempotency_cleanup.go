package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// KeyCleaner removes stale idempotency keys.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupJob processes TaskIdempotencyCleanup tasks.
type IdempotencyCleanupJob struct {
	store    KeyCleaner
	logger   *slog.Logger
	observer JobObserver
}

// NewIdempotencyCleanupJob wires the job.
func NewIdempotencyCleanupJob(store KeyCleaner, logger *slog.Logger, observer JobObserver) *IdempotencyCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdempotencyCleanupJob{store: store, logger: logger, observer: observer}
}

// Handle purges keys older than the payload retention.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	defer func() {
		if j.observer != nil {
			j.observer.ObserveJob(TaskIdempotencyCleanup, err)
		}
	}()
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.RetentionHours <= 0 {
		payload.RetentionHours = 24
	}
	removed, err := j.store.Cleanup(ctx, time.Duration(payload.RetentionHours)*time.Hour)
	if err != nil {
		return err
	}
	j.logger.Info("idempotency keys purged", slog.Int64("removed", removed))
	return nil
}
