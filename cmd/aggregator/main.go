package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spacesedan/tickersense/internal/aggregator"
	"github.com/spacesedan/tickersense/internal/app"
	"github.com/spacesedan/tickersense/internal/db/backend"
	"github.com/spacesedan/tickersense/internal/scheduler"
)

func main() {
	once := flag.Bool("once", false, "run aggregate and rank once and exit")
	date := flag.String("date", "", "date to run with -once (YYYY-MM-DD, default today)")
	flag.Parse()

	cfg, err := app.Bootstrap()
	if err != nil {
		slog.Error("[Aggregator] Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := backend.Open(ctx, cfg.Store)
	if err != nil {
		slog.Error("[Aggregator] Failed to open store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	engine, err := app.NewEngine(store, cfg)
	if err != nil {
		slog.Error("[Aggregator] Failed to build engine", slog.String("error", err.Error()))
		os.Exit(1)
	}

	jobs := &scheduler.Jobs{
		Engine:  engine,
		LockTTL: cfg.Valkey.RunLockTTL,
		Logger:  slog.Default(),
	}
	valkey, err := app.NewValkey(ctx, cfg.Valkey)
	if err != nil {
		slog.Error("[Aggregator] Failed to connect to Valkey", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if valkey != nil {
		defer valkey.Close()
		jobs.Locker = valkey
	}

	if *once {
		day := engine.Today()
		if *date != "" {
			day, err = aggregator.ParseDate(*date, engine.Location())
			if err != nil {
				slog.Error("[Aggregator] Invalid -date", slog.String("error", err.Error()))
				os.Exit(2)
			}
		}
		if err := jobs.RunDate(ctx, day); err != nil {
			slog.Error("[Aggregator] Run failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	runner := scheduler.NewRunner(ctx, engine.Location(), slog.Default())
	for _, j := range []struct {
		name string
		spec string
		job  scheduler.Job
	}{
		{"aggregate", cfg.Schedules.Aggregate, jobs.Aggregate},
		{"finalize", cfg.Schedules.Finalize, jobs.Finalize},
	} {
		if _, err := runner.Add(j.name, j.spec, j.job); err != nil {
			slog.Error("[Aggregator] Failed to schedule job", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	if err := jobs.Aggregate(ctx); err != nil {
		slog.Warn("[Aggregator] Initial run failed", slog.String("error", err.Error()))
	}

	runner.Start()
	<-ctx.Done()
	slog.Info("[Aggregator] Shutting down gracefully...")

	stopped := make(chan struct{})
	go func() {
		runner.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(30 * time.Second):
		slog.Warn("[Aggregator] Timed out waiting for running jobs")
	}
}
