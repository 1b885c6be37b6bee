package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spacesedan/tickersense/internal/app"
	"github.com/spacesedan/tickersense/internal/clients/kafka_client"
	"github.com/spacesedan/tickersense/internal/ingest"
	"github.com/spacesedan/tickersense/internal/models"
	"github.com/spacesedan/tickersense/internal/scheduler"
)

func main() {
	cfg, err := app.Bootstrap()
	if err != nil {
		slog.Error("[Producer] Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kafkaCfg := kafka_client.KafkaConfig{
		Broker: cfg.Kafka.Broker,
		Topic:  cfg.Kafka.RawContentTopic,
	}

	var producer *kafka_client.Producer
	for {
		producer, err = kafka_client.NewProducer(kafkaCfg)
		if err == nil {
			break
		}
		slog.Warn("[Producer] Kafka init failed, retrying...", slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
	defer producer.Close()

	valkey, err := app.NewValkey(ctx, cfg.Valkey)
	if err != nil {
		slog.Error("[Producer] Failed to connect to Valkey", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if valkey != nil {
		defer valkey.Close()
	}

	loc, err := cfg.App.Location()
	if err != nil {
		slog.Error("[Producer] Invalid timezone", slog.String("error", err.Error()))
		os.Exit(1)
	}

	pipelines := app.NewPipelines(cfg, ingest.PublishSink{Publisher: producer}, valkey)
	schedules := map[string]string{
		models.SourceReddit: cfg.Schedules.Reddit,
		models.SourceNews:   cfg.Schedules.News,
	}

	runner := scheduler.NewRunner(ctx, loc, slog.Default())
	for name, p := range pipelines {
		if _, err := runner.Add("scrape_"+name, schedules[name], scheduler.Ingest(p, slog.Default())); err != nil {
			slog.Error("[Producer] Failed to schedule job", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Fetch once on startup rather than waiting for the first tick.
	for name, p := range pipelines {
		if err := scheduler.Ingest(p, slog.Default())(ctx); err != nil {
			slog.Warn("[Producer] Initial scrape failed",
				slog.String("source", name),
				slog.String("error", err.Error()))
		}
	}

	runner.Start()
	<-ctx.Done()
	slog.Info("[Producer] Shutting down producer gracefully...")
	runner.Stop()
}
