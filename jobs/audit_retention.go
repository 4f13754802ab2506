package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
)

// RetentionStore deletes audit rows older than a number of days.
type RetentionStore interface {
	DeleteOlderThan(ctx context.Context, days int) (int64, error)
}

// AuditRetentionJob sweeps audit rows past the retention period.
type AuditRetentionJob struct {
	Store  RetentionStore
	Logger *slog.Logger
}

// NewAuditRetentionJob wires dependencies for the retention handler.
func NewAuditRetentionJob(store RetentionStore, logger *slog.Logger) *AuditRetentionJob {
	return &AuditRetentionJob{Store: store, Logger: logger}
}

// Handle processes TaskAuditRetention tasks.
func (j *AuditRetentionJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("audit retention: handler not configured")
	}
	var payload AuditRetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RetentionDays <= 0 {
		payload.RetentionDays = 365
	}

	removed, err := j.Store.DeleteOlderThan(ctx, payload.RetentionDays)
	if err != nil {
		j.logger().Error("audit retention sweep", slog.Any("error", err))
		return err
	}
	j.logger().Info("completed audit retention sweep",
		slog.Int("retention_days", payload.RetentionDays),
		slog.Int64("removed", removed))
	return nil
}

func (j *AuditRetentionJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
