package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spacesedan/tickersense/internal/db"
	"github.com/spacesedan/tickersense/internal/metrics"
	"github.com/spacesedan/tickersense/internal/models"
	"github.com/spacesedan/tickersense/internal/sentiment"
)

// Source fetches raw items from one outlet.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]models.RawContent, error)
}

// Deduper remembers source ids that were already delivered.
type Deduper interface {
	IsProcessed(ctx context.Context, source, id string) (bool, error)
	MarkProcessed(ctx context.Context, source, id string, ttl time.Duration) error
}

// Sink delivers one raw item and returns how many records it wrote.
type Sink interface {
	Deliver(ctx context.Context, raw models.RawContent) (int, error)
}

// Publisher is satisfied by the Kafka producer.
type Publisher interface {
	Publish(ctx context.Context, raw models.RawContent) error
}

// PublishSink forwards raw items to the raw-content topic.
type PublishSink struct {
	Publisher Publisher
}

func (p PublishSink) Deliver(ctx context.Context, raw models.RawContent) (int, error) {
	if err := p.Publisher.Publish(ctx, raw); err != nil {
		return 0, err
	}
	return 1, nil
}

// StoreSink classifies raw items in-process and inserts their mentions.
type StoreSink struct {
	Store      db.MentionStore
	Classifier Classifier
	Now        func() time.Time
}

// Deliver inserts every mention of raw and returns how many were new. Mentions
// already stored and failed inserts are skipped; an error is returned only
// when every insert failed.
func (s StoreSink) Deliver(ctx context.Context, raw models.RawContent) (int, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	var (
		saved int
		errs  []error
	)
	for _, m := range Normalize(raw, s.Classifier, now()) {
		_, created, err := s.Store.InsertMention(ctx, m)
		if err != nil {
			metrics.MentionsSkipped.WithLabelValues(raw.Source, "store_error").Inc()
			errs = append(errs, fmt.Errorf("insert %s: %w", m.Ticker, err))
			continue
		}
		if !created {
			metrics.MentionsSkipped.WithLabelValues(raw.Source, "duplicate").Inc()
			continue
		}
		metrics.MentionsIngested.WithLabelValues(raw.Source).Inc()
		saved++
	}
	if saved == 0 && len(errs) > 0 {
		return 0, errors.Join(errs...)
	}
	return saved, nil
}

// IngestResult counts raw items fetched, records written and raw items
// dropped (duplicates, no tickers, delivery failures).
type IngestResult struct {
	Found   int `json:"total_found"`
	Saved   int `json:"saved"`
	Skipped int `json:"skipped"`
}

type Pipeline struct {
	Source Source
	Sink   Sink
	// Dedup is optional.
	Dedup    Deduper
	DedupTTL time.Duration
	Logger   *slog.Logger
}

// Run fetches once and delivers every new item that mentions a ticker.
// Individual failures are skipped and counted; only a failed fetch or a
// cancelled context aborts the run.
func (p *Pipeline) Run(ctx context.Context) (IngestResult, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	source := p.Source.Name()
	start := time.Now()

	items, err := p.Source.Fetch(ctx)
	if err != nil {
		return IngestResult{}, fmt.Errorf("[Ingest] fetch %s: %w", source, err)
	}

	res := IngestResult{Found: len(items)}
	skip := func(reason string) {
		res.Skipped++
		metrics.MentionsSkipped.WithLabelValues(source, reason).Inc()
	}

	for _, raw := range items {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if len(sentiment.ExtractTickers(raw.Text)) == 0 {
			skip("no_tickers")
			continue
		}

		if p.Dedup != nil {
			seen, err := p.Dedup.IsProcessed(ctx, source, raw.SourceID)
			if err != nil {
				logger.Warn("[Ingest] Dedup lookup failed, delivering anyway",
					slog.String("source_id", raw.SourceID),
					slog.String("error", err.Error()))
			}
			if seen {
				skip("duplicate")
				continue
			}
		}

		n, err := p.Sink.Deliver(ctx, raw)
		if err != nil {
			logger.Warn("[Ingest] Failed to deliver item",
				slog.String("source", source),
				slog.String("content_id", raw.ContentID),
				slog.String("error", err.Error()))
			skip("delivery_error")
			continue
		}
		res.Saved += n

		if p.Dedup != nil {
			if err := p.Dedup.MarkProcessed(ctx, source, raw.SourceID, p.DedupTTL); err != nil {
				logger.Warn("[Ingest] Error marking item as processed",
					slog.String("source_id", raw.SourceID),
					slog.String("error", err.Error()))
			}
		}
	}

	logger.Info("[Ingest] Completed scrape",
		slog.String("source", source),
		slog.Int("found", res.Found),
		slog.Int("saved", res.Saved),
		slog.Int("skipped", res.Skipped),
		slog.Duration("duration", time.Since(start)))
	return res, nil
}
