package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"github.com/spacesedan/tickersense/internal/app"
	"github.com/spacesedan/tickersense/internal/clients/kafka_client"
	"github.com/spacesedan/tickersense/internal/consumers"
	"github.com/spacesedan/tickersense/internal/db/backend"
	"github.com/spacesedan/tickersense/internal/sentiment"
)

func main() {
	cfg, err := app.Bootstrap()
	if err != nil {
		slog.Error("[Consumer] Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := backend.Open(ctx, cfg.Store)
	if err != nil {
		slog.Error("[Consumer] Failed to open store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	kafkaCfg := kafka_client.KafkaConfig{
		Broker:  cfg.Kafka.Broker,
		GroupID: cfg.Kafka.ConsumerGroupID,
		Topic:   cfg.Kafka.RawContentTopic,
	}

	var consumer *kafka.Consumer
	for {
		consumer, err = kafka_client.NewConsumer(kafkaCfg)
		if err == nil {
			break
		}
		slog.Warn("[Consumer] Kafka init failed, retrying...", slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			slog.Warn("[Consumer] Failed to close consumer", slog.String("error", err.Error()))
		}
	}()

	rc := consumers.NewRawContentConsumer(consumer, store, sentiment.NewVaderClassifier(),
		consumers.RawContentConsumerConfig{
			BatchSize: cfg.Kafka.BatchSize,
			Logger:    slog.Default(),
		})

	if err := rc.Run(ctx); err != nil {
		slog.Error("[Consumer] Consumer stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
