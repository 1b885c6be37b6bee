package kafka_client

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"github.com/spacesedan/tickersense/internal/clients/kafka_client/utils"
	"github.com/spacesedan/tickersense/internal/models"
)

// Producer publishes raw content to one topic and waits for the broker's
// delivery report of each message.
type Producer struct {
	producer *kafka.Producer
	topic    string
}

func NewProducer(cfg KafkaConfig) (*Producer, error) {
	cfg = cfg.withDefaults()
	slog.Info("[KafkaClient] Initializing Kafka Producer...",
		slog.String("broker", cfg.Broker),
		slog.String("topic", cfg.Topic))

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":   cfg.Broker,
		"security.protocol":   "PLAINTEXT",
		"api.version.request": "true",
		"enable.idempotence":  true,
		"acks":                "all",
	})
	if err != nil {
		return nil, fmt.Errorf("[KafkaClient] Failed to create producer: %w", err)
	}

	slog.Info("[KafkaClient] Kafka Producer initialized successfully")
	return &Producer{producer: p, topic: cfg.Topic}, nil
}

func (p *Producer) Close() {
	slog.Info("[KafkaClient] Flushing Kafka producer before shutdown...")
	if remaining := p.producer.Flush(5000); remaining > 0 {
		slog.Warn("[KafkaClient] Not all messages were delivered before shutdown",
			slog.Int("remaining", remaining))
	}
	p.producer.Close()
	slog.Info("[KafkaClient] Kafka producer shut down")
}

// Publish sends raw keyed by its content id.
func (p *Producer) Publish(ctx context.Context, raw models.RawContent) error {
	value, err := utils.EncodeRawContent(raw)
	if err != nil {
		return fmt.Errorf("[KafkaClient] serialize %s: %w", raw.ContentID, err)
	}

	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(raw.ContentID),
		Value:          value,
	}

	delivery := make(chan kafka.Event, 1)
	for i := 0; i < 3; i++ {
		err = p.producer.Produce(msg, delivery)
		if err == nil {
			break
		}
		slog.Warn("[KafkaClient] Failed to produce message, retrying...",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))
	}
	if err != nil {
		return fmt.Errorf("[KafkaClient] produce %s: %w", raw.ContentID, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(DELIVERY_TIMEOUT):
		return fmt.Errorf("[KafkaClient] delivery of %s timed out", raw.ContentID)
	case ev := <-delivery:
		m, ok := ev.(*kafka.Message)
		if !ok {
			return fmt.Errorf("[KafkaClient] unexpected delivery event %v", ev)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("[KafkaClient] delivery of %s failed: %w", raw.ContentID, m.TopicPartition.Error)
		}
	}

	slog.Debug("[KafkaClient] Published raw content",
		slog.String("topic", p.topic),
		slog.String("content_id", raw.ContentID))
	return nil
}
