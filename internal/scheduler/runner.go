// Package scheduler runs the periodic fetch and aggregation jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Runner wraps cron with a base context that every job receives. Specs use
// the standard 5-field format and are evaluated in the runner's location.
type Runner struct {
	cron    *cron.Cron
	logger  *slog.Logger
	baseCtx context.Context
}

func NewRunner(baseCtx context.Context, loc *time.Location, logger *slog.Logger) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger: logger}
	return &Runner{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		baseCtx: baseCtx,
	}
}

// Add schedules job under name. Job errors are logged; the schedule keeps
// running.
func (r *Runner) Add(name, spec string, job Job) (cron.EntryID, error) {
	id, err := r.cron.AddFunc(spec, func() {
		start := time.Now()
		r.logger.Info("[Scheduler] Job started", slog.String("job", name))

		if err := job(r.baseCtx); err != nil {
			r.logger.Error("[Scheduler] Job failed",
				slog.String("job", name),
				slog.String("error", err.Error()),
				slog.Duration("duration", time.Since(start)))
			return
		}
		r.logger.Info("[Scheduler] Job finished",
			slog.String("job", name),
			slog.Duration("duration", time.Since(start)))
	})
	if err != nil {
		return 0, fmt.Errorf("[Scheduler] invalid schedule %q for %s: %w", spec, name, err)
	}
	r.logger.Info("[Scheduler] Job registered",
		slog.String("job", name),
		slog.String("schedule", spec))
	return id, nil
}

func (r *Runner) Start() {
	r.logger.Info("[Scheduler] Cron started")
	r.cron.Start()
}

// Stop prevents new runs and waits for running jobs to return.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("[Scheduler] Cron stopped")
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("[Cron] "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("[Cron] "+msg, append([]any{slog.String("error", err.Error())}, keysAndValues...)...)
}
