package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spacesedan/tickersense/internal/aggregator"
	"github.com/spacesedan/tickersense/internal/ingest"
)

// Engine is the part of aggregator.Engine the jobs drive.
type Engine interface {
	Today() time.Time
	Run(ctx context.Context, date time.Time) (aggregator.RunResult, error)
}

// Locker is satisfied by the Valkey client.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

type Jobs struct {
	Engine Engine
	// Locker is optional; without it runs are not guarded across processes.
	Locker  Locker
	LockTTL time.Duration
	Logger  *slog.Logger
}

func (j *Jobs) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}

func lockKey(date time.Time) string {
	return "lock:aggregate:" + date.Format(aggregator.DateLayout)
}

// Aggregate runs aggregate then rank for today.
func (j *Jobs) Aggregate(ctx context.Context) error {
	return j.RunDate(ctx, j.Engine.Today())
}

// Finalize re-runs yesterday so mentions that landed after its last hourly
// pass are reflected in its final summaries and ranking.
func (j *Jobs) Finalize(ctx context.Context) error {
	return j.RunDate(ctx, j.Engine.Today().AddDate(0, 0, -1))
}

// RunDate runs date under the per-date lock. A lock held elsewhere skips the
// run without error.
func (j *Jobs) RunDate(ctx context.Context, date time.Time) error {
	day := date.Format(aggregator.DateLayout)

	if j.Locker != nil {
		key := lockKey(date)
		token, ok, err := j.Locker.TryLock(ctx, key, j.LockTTL)
		if err != nil {
			return fmt.Errorf("[Scheduler] acquire lock for %s: %w", day, err)
		}
		if !ok {
			j.logger().Info("[Scheduler] Aggregation already running elsewhere, skipping",
				slog.String("date", day))
			return nil
		}
		defer func() {
			// The run's ctx may be done; release with a fresh one.
			unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := j.Locker.Unlock(unlockCtx, key, token); err != nil {
				j.logger().Warn("[Scheduler] Failed to release lock",
					slog.String("date", day),
					slog.String("error", err.Error()))
			}
		}()
	}

	res, err := j.Engine.Run(ctx, date)
	if err != nil {
		return fmt.Errorf("[Scheduler] run %s: %w", day, err)
	}
	j.logger().Info("[Scheduler] Aggregation complete",
		slog.String("date", day),
		slog.Int("summaries", len(res.Summaries)),
		slog.Int("bullish", len(res.Bullish)),
		slog.Int("bearish", len(res.Bearish)))
	return nil
}

// Ingest wraps a fetch pipeline as a job.
func Ingest(p *ingest.Pipeline, logger *slog.Logger) Job {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context) error {
		res, err := p.Run(ctx)
		if err != nil {
			return err
		}
		logger.Info("[Scheduler] Ingestion complete",
			slog.String("source", p.Source.Name()),
			slog.Int("found", res.Found),
			slog.Int("saved", res.Saved),
			slog.Int("skipped", res.Skipped))
		return nil
	}
}
