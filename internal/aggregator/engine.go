package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spacesedan/tickersense/internal/db"
	"github.com/spacesedan/tickersense/internal/metrics"
	"github.com/spacesedan/tickersense/internal/models"
)

type EngineConfig struct {
	// Location is the reference timezone that defines calendar days.
	Location *time.Location
	// PruneStale deletes trending rows of tickers that fell out of the
	// latest ranking for the same (category, date).
	PruneStale bool
	Now        func() time.Time
	Logger     *slog.Logger
}

// Engine aggregates mentions into daily summaries and ranks them. It holds no
// state between calls; every operation recomputes from the store.
type Engine struct {
	store      db.Store
	loc        *time.Location
	pruneStale bool
	now        func() time.Time
	logger     *slog.Logger
}

func NewEngine(store db.Store, cfg EngineConfig) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		store:      store,
		loc:        cfg.Location,
		pruneStale: cfg.PruneStale,
		now:        cfg.Now,
		logger:     cfg.Logger,
	}
}

func (e *Engine) Location() *time.Location { return e.loc }

// Today is the start of the current day in the reference timezone.
func (e *Engine) Today() time.Time {
	return StartOfDay(e.now(), e.loc)
}

// day normalizes date, defaulting the zero value to today.
func (e *Engine) day(date time.Time) time.Time {
	if date.IsZero() {
		return e.Today()
	}
	return StartOfDay(date, e.loc)
}

// Aggregate recomputes every (ticker, date) summary from the mentions created
// inside date's window and upserts them in one transaction. Re-running it over
// unchanged mentions leaves the stored summaries unchanged.
func (e *Engine) Aggregate(ctx context.Context, date time.Time) (summaries []models.DailySummary, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveRun("aggregate", start, err)
	}()

	from, to := DayWindow(e.day(date), e.loc)
	day := from.Format(DateLayout)

	err = e.store.WithTx(ctx, func(tx db.Store) error {
		mentions, err := tx.FetchMentions(ctx, db.MentionQuery{Start: from, End: to})
		if err != nil {
			return fmt.Errorf("[Aggregator] fetch mentions for %s: %w", day, err)
		}

		computed, unknown := Summarize(mentions, from)
		if unknown > 0 {
			e.logger.Warn("[Aggregator] Mentions with unrecognised labels counted as neutral",
				slog.String("date", day),
				slog.Int("count", unknown))
		}

		saved := make([]models.DailySummary, 0, len(computed))
		for _, s := range computed {
			stored, err := tx.UpsertSummary(ctx, s)
			if err != nil {
				return fmt.Errorf("[Aggregator] upsert summary %s/%s: %w", s.Ticker, day, err)
			}
			saved = append(saved, stored)
		}
		summaries = e.summariesInZone(saved)
		return nil
	})
	if err != nil {
		e.logger.Error("[Aggregator] Aggregation failed",
			slog.String("date", day),
			slog.String("error", err.Error()))
		return nil, err
	}

	metrics.SummariesLastRun.Set(float64(len(summaries)))
	e.logger.Info("[Aggregator] Aggregated daily sentiment",
		slog.String("date", day),
		slog.Int("summaries", len(summaries)),
		slog.Duration("duration", time.Since(start)))
	return summaries, nil
}

// Rank builds the bullish and bearish top-N lists for date from its stored
// summaries and upserts them in one transaction. Summaries are only read.
func (e *Engine) Rank(ctx context.Context, date time.Time) (bullish, bearish []models.TrendingEntry, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveRun("rank", start, err)
	}()

	d := e.day(date)
	day := d.Format(DateLayout)

	err = e.store.WithTx(ctx, func(tx db.Store) error {
		summaries, err := tx.ListSummariesByDate(ctx, d, MinMentions)
		if err != nil {
			return fmt.Errorf("[Ranker] list summaries for %s: %w", day, err)
		}

		bullish, err = e.storeRanking(ctx, tx, RankSummaries(summaries, models.CategoryBullish, TopN))
		if err != nil {
			return err
		}
		bearish, err = e.storeRanking(ctx, tx, RankSummaries(summaries, models.CategoryBearish, TopN))
		if err != nil {
			return err
		}

		if e.pruneStale {
			for _, c := range []struct {
				category models.TrendingCategory
				entries  []models.TrendingEntry
			}{
				{models.CategoryBullish, bullish},
				{models.CategoryBearish, bearish},
			} {
				keep := make([]string, 0, len(c.entries))
				for _, entry := range c.entries {
					keep = append(keep, entry.Ticker)
				}
				removed, err := tx.DeleteEntriesExcept(ctx, c.category, d, keep)
				if err != nil {
					return fmt.Errorf("[Ranker] prune %s entries for %s: %w", c.category, day, err)
				}
				if removed > 0 {
					e.logger.Info("[Ranker] Pruned stale trending entries",
						slog.String("date", day),
						slog.String("category", string(c.category)),
						slog.Int("removed", removed))
				}
			}
		}
		return nil
	})
	if err != nil {
		e.logger.Error("[Ranker] Ranking failed",
			slog.String("date", day),
			slog.String("error", err.Error()))
		return nil, nil, err
	}

	e.logger.Info("[Ranker] Calculated trending stocks",
		slog.String("date", day),
		slog.Int("bullish", len(bullish)),
		slog.Int("bearish", len(bearish)))
	return bullish, bearish, nil
}

// The InZone helpers move timestamps read back from a store into the
// engine's zone. Drivers return them in UTC or time.Local.
func (e *Engine) summariesInZone(ss []models.DailySummary) []models.DailySummary {
	for i := range ss {
		ss[i].Date = ss[i].Date.In(e.loc)
		ss[i].CreatedAt = ss[i].CreatedAt.In(e.loc)
		ss[i].UpdatedAt = ss[i].UpdatedAt.In(e.loc)
	}
	return ss
}

func (e *Engine) entriesInZone(es []models.TrendingEntry) []models.TrendingEntry {
	for i := range es {
		es[i].Date = es[i].Date.In(e.loc)
		es[i].CreatedAt = es[i].CreatedAt.In(e.loc)
		es[i].UpdatedAt = es[i].UpdatedAt.In(e.loc)
	}
	return es
}

func (e *Engine) mentionsInZone(ms []models.Mention) []models.Mention {
	for i := range ms {
		ms[i].CreatedAt = ms[i].CreatedAt.In(e.loc)
		ms[i].ProcessedAt = ms[i].ProcessedAt.In(e.loc)
	}
	return ms
}

func (e *Engine) storeRanking(ctx context.Context, tx db.Store, entries []models.TrendingEntry) ([]models.TrendingEntry, error) {
	stored := make([]models.TrendingEntry, 0, len(entries))
	for _, entry := range entries {
		saved, err := tx.UpsertEntry(ctx, entry)
		if err != nil {
			return nil, fmt.Errorf("[Ranker] upsert %s entry %s/%s: %w",
				entry.Category, entry.Ticker, entry.Date.Format(DateLayout), err)
		}
		stored = append(stored, saved)
	}
	return e.entriesInZone(stored), nil
}

type RunResult struct {
	Date      time.Time
	Summaries []models.DailySummary
	Bullish   []models.TrendingEntry
	Bearish   []models.TrendingEntry
}

// Run aggregates date and then ranks it. Both steps are idempotent, so a
// scheduler delivering the same date more than once stays correct.
func (e *Engine) Run(ctx context.Context, date time.Time) (RunResult, error) {
	d := e.day(date)

	summaries, err := e.Aggregate(ctx, d)
	if err != nil {
		return RunResult{}, err
	}

	bullish, bearish, err := e.Rank(ctx, d)
	if err != nil {
		return RunResult{}, err
	}

	return RunResult{
		Date:      d,
		Summaries: summaries,
		Bullish:   bullish,
		Bearish:   bearish,
	}, nil
}
