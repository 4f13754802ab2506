package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/viper-platform/raps/internal/rsop"
)

// CacheWarmupJob pre-resolves permissions for members with recent
// sessions so their first request after a cache flush stays fast.
type CacheWarmupJob struct {
	Resolver *rsop.Service
	Pool     *pgxpool.Pool
	Logger   *slog.Logger
}

// NewCacheWarmupJob wires dependencies for the warmup handler.
func NewCacheWarmupJob(resolver *rsop.Service, pool *pgxpool.Pool, logger *slog.Logger) *CacheWarmupJob {
	return &CacheWarmupJob{Resolver: resolver, Pool: pool, Logger: logger}
}

// Handle processes TaskCacheWarmup tasks.
func (j *CacheWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Resolver == nil || j.Pool == nil {
		return errors.New("cache warmup: handler not configured")
	}
	logger := j.logger()
	logger.Info("starting rsop cache warmup")

	memberIDs, err := j.recentMembers(ctx)
	if err != nil {
		logger.Error("load recent members", slog.Any("error", err))
		return err
	}

	warmed := 0
	for _, id := range memberIDs {
		memberCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		_, err := j.Resolver.Resolve(memberCtx, id, rsop.Options{})
		cancel()
		if err != nil {
			logger.Warn("warm member", slog.Int64("member_id", id), slog.Any("error", err))
			continue
		}
		warmed++
	}

	logger.Info("completed rsop cache warmup", slog.Int("members", warmed))
	return nil
}

func (j *CacheWarmupJob) recentMembers(ctx context.Context) ([]int64, error) {
	rows, err := j.Pool.Query(ctx, `
		SELECT DISTINCT member_id FROM sessions
		WHERE expires_at > NOW()`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (j *CacheWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
