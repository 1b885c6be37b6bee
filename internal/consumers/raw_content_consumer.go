package consumers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"github.com/spacesedan/tickersense/internal/clients/kafka_client"
	kafkautils "github.com/spacesedan/tickersense/internal/clients/kafka_client/utils"
	"github.com/spacesedan/tickersense/internal/db"
	"github.com/spacesedan/tickersense/internal/ingest"
	"github.com/spacesedan/tickersense/internal/metrics"
	"github.com/spacesedan/tickersense/internal/models"
	"github.com/spacesedan/tickersense/internal/utils"
)

const flushRetries = 3

// KafkaConsumer is satisfied by *kafka.Consumer.
type KafkaConsumer interface {
	kafka_client.MessageReader
	kafka_client.MessageCommitter
}

// pendingMessage is a consumed message and the mentions it produced.
type pendingMessage struct {
	msg      *kafka.Message
	mentions []models.Mention
}

type RawContentConsumer struct {
	consumer   KafkaConsumer
	store      db.Store
	classifier ingest.Classifier
	buffer     *utils.BatchBuffer[pendingMessage]
	flushEvery time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

type RawContentConsumerConfig struct {
	BatchSize  int
	FlushEvery time.Duration
	Now        func() time.Time
	Logger     *slog.Logger
}

func NewRawContentConsumer(consumer KafkaConsumer, store db.Store, classifier ingest.Classifier, cfg RawContentConsumerConfig) *RawContentConsumer {
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = utils.BATCH_TIMEOUT
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &RawContentConsumer{
		consumer:   consumer,
		store:      store,
		classifier: classifier,
		buffer:     utils.NewBatchBuffer[pendingMessage](cfg.BatchSize),
		flushEvery: cfg.FlushEvery,
		now:        cfg.Now,
		logger:     cfg.Logger,
	}
}

// Run consumes until ctx is done or a batch cannot be stored. Offsets are
// committed only after the batch holding their mentions is stored, so a
// restart re-delivers anything unsaved.
func (c *RawContentConsumer) Run(ctx context.Context) error {
	iterator := kafka_client.NewKafkaMessageIterator(ctx, c.consumer)
	committer := kafka_client.NewCommitHandler(ctx, c.consumer)

	c.logger.Info("[RawContentConsumer] Listening for messages...")

	ticker := time.NewTicker(c.flushEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Unflushed messages stay uncommitted and are re-delivered.
			c.logger.Warn("[RawContentConsumer] Stopping consumer...",
				slog.Int("unflushed", c.buffer.Size()))
			return nil
		case <-ticker.C:
			if err := c.flush(ctx, committer); err != nil {
				return err
			}
		default:
			msg, err := iterator.Next()
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if err != nil {
				kafkautils.HandleConsumerError(err)
				continue
			}
			if msg == nil {
				continue
			}

			if full := c.buffer.Add(c.decode(msg)); full {
				if err := c.flush(ctx, committer); err != nil {
					return err
				}
			}
		}
	}
}

// decode turns msg into mentions. Undecodable messages produce none and are
// committed with the rest of their batch.
func (c *RawContentConsumer) decode(msg *kafka.Message) pendingMessage {
	raw, err := kafkautils.DecodeRawContent(msg.Value)
	if err != nil {
		c.logger.Warn("[RawContentConsumer] Dropping undecodable message",
			slog.String("offset", msg.TopicPartition.Offset.String()),
			slog.String("error", err.Error()))
		metrics.MentionsSkipped.WithLabelValues("kafka", "invalid").Inc()
		return pendingMessage{msg: msg}
	}

	mentions := ingest.Normalize(raw, c.classifier, c.now())
	if len(mentions) == 0 {
		metrics.MentionsSkipped.WithLabelValues(raw.Source, "no_tickers").Inc()
	}
	return pendingMessage{msg: msg, mentions: mentions}
}

func (c *RawContentConsumer) flush(ctx context.Context, committer *kafka_client.KafkaCommitHandler) error {
	batch := c.buffer.GetAndClear()
	if len(batch) == 0 {
		return nil
	}

	mentions := uniqueMentions(batch)

	var (
		err     error
		created []models.Mention
	)
	for attempt := 1; attempt <= flushRetries; attempt++ {
		created = created[:0]
		if err = c.store.WithTx(ctx, func(tx db.Store) error {
			for _, m := range mentions {
				stored, isNew, err := tx.InsertMention(ctx, m)
				if err != nil {
					return err
				}
				if isNew {
					created = append(created, stored)
				}
			}
			return nil
		}); err == nil {
			break
		}
		c.logger.Warn("[RawContentConsumer] Batch insert failed",
			slog.Int("attempt", attempt),
			slog.Int("mentions", len(mentions)),
			slog.String("error", err.Error()))

		if attempt == flushRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	if err != nil {
		return fmt.Errorf("[RawContentConsumer] store batch of %d mentions: %w", len(mentions), err)
	}

	for _, m := range created {
		metrics.MentionsIngested.WithLabelValues(m.Source).Inc()
	}

	for _, msg := range lastPerPartition(batch) {
		if err := committer.Commit(msg); err != nil {
			c.logger.Warn("[RawContentConsumer] Failed to commit offset",
				slog.String("error", err.Error()))
		}
	}

	c.logger.Info("[RawContentConsumer] Flushed batch",
		slog.Int("messages", len(batch)),
		slog.Int("mentions", len(mentions)),
		slog.Int("new", len(created)))
	return nil
}

// uniqueMentions flattens the batch keeping the first mention of each ID.
// Redelivered or double-published content yields the same IDs.
func uniqueMentions(batch []pendingMessage) []models.Mention {
	seen := make(map[string]struct{})
	var mentions []models.Mention
	for _, p := range batch {
		for _, m := range p.mentions {
			if _, ok := seen[m.ID]; ok {
				continue
			}
			seen[m.ID] = struct{}{}
			mentions = append(mentions, m)
		}
	}
	return mentions
}

// lastPerPartition keeps the highest-offset message of each topic partition;
// committing it covers every earlier message of that partition.
func lastPerPartition(batch []pendingMessage) []*kafka.Message {
	type tp struct {
		topic     string
		partition int32
	}
	last := make(map[tp]*kafka.Message)
	var order []tp
	for _, p := range batch {
		key := tp{partition: p.msg.TopicPartition.Partition}
		if p.msg.TopicPartition.Topic != nil {
			key.topic = *p.msg.TopicPartition.Topic
		}
		prev, ok := last[key]
		if !ok {
			order = append(order, key)
		}
		if !ok || p.msg.TopicPartition.Offset > prev.TopicPartition.Offset {
			last[key] = p.msg
		}
	}

	out := make([]*kafka.Message, 0, len(order))
	for _, k := range order {
		out = append(out, last[k])
	}
	return out
}
