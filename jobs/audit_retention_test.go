package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRetentionStore struct {
	days    int
	removed int64
	err     error
}

func (s *stubRetentionStore) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	s.days = days
	return s.removed, s.err
}

func retentionTask(t *testing.T, days int) *asynq.Task {
	t.Helper()
	task, err := NewAuditRetentionTask(AuditRetentionPayload{RetentionDays: days})
	require.NoError(t, err)
	return task
}

func TestAuditRetentionSweep(t *testing.T) {
	store := &stubRetentionStore{removed: 12}
	job := NewAuditRetentionJob(store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, job.Handle(context.Background(), retentionTask(t, 90)))
	assert.Equal(t, 90, store.days)
}

func TestAuditRetentionDefaultsPeriod(t *testing.T) {
	store := &stubRetentionStore{}
	job := NewAuditRetentionJob(store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, job.Handle(context.Background(), retentionTask(t, 0)))
	assert.Equal(t, 365, store.days)
}

func TestAuditRetentionPropagatesError(t *testing.T) {
	store := &stubRetentionStore{err: errors.New("db down")}
	job := NewAuditRetentionJob(store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.Error(t, job.Handle(context.Background(), retentionTask(t, 30)))
}

func TestAuditRetentionSkipsBadPayload(t *testing.T) {
	store := &stubRetentionStore{}
	job := NewAuditRetentionJob(store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := job.Handle(context.Background(), asynq.NewTask(TaskAuditRetention, []byte("{broken")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Zero(t, store.days)
}
