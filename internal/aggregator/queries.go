package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spacesedan/tickersense/internal/db"
	"github.com/spacesedan/tickersense/internal/models"
)

const (
	DefaultHistoryDays    = 7
	DefaultMentionsLimit  = 20
	DefaultDashboardLimit = 5
)

func validTicker(ticker string) error {
	if strings.TrimSpace(ticker) == "" {
		return fmt.Errorf("%w: empty ticker", ErrInvalidInput)
	}
	return nil
}

// HistoricalSentiment returns ticker's summaries dated within
// [today - days, today], newest first. An unknown ticker yields an empty slice.
func (e *Engine) HistoricalSentiment(ctx context.Context, ticker string, days int) ([]models.DailySummary, error) {
	if err := validTicker(ticker); err != nil {
		return nil, err
	}
	if days < 0 {
		return nil, fmt.Errorf("%w: days must be >= 0, got %d", ErrInvalidInput, days)
	}

	today := e.Today()
	from := today.AddDate(0, 0, -days)

	summaries, err := e.store.ListSummariesByTicker(ctx, ticker, from, today)
	if err != nil {
		return nil, fmt.Errorf("[Aggregator] historical sentiment %s: %w", ticker, err)
	}
	return e.summariesInZone(summaries), nil
}

// RecentMentions returns ticker's newest limit mentions across all time.
func (e *Engine) RecentMentions(ctx context.Context, ticker string, limit int) ([]models.Mention, error) {
	if err := validTicker(ticker); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be > 0, got %d", ErrInvalidInput, limit)
	}

	mentions, err := e.store.FetchMentions(ctx, db.MentionQuery{Ticker: ticker, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("[Aggregator] recent mentions %s: %w", ticker, err)
	}
	return e.mentionsInZone(mentions), nil
}

// Trending returns the stored ranking of category on date, best rank first.
func (e *Engine) Trending(ctx context.Context, category models.TrendingCategory, date time.Time, limit int) ([]models.TrendingEntry, error) {
	d := e.day(date)
	entries, err := e.store.ListEntries(ctx, category, d, limit)
	if err != nil {
		return nil, fmt.Errorf("[Aggregator] trending %s for %s: %w", category, d.Format(DateLayout), err)
	}
	return e.entriesInZone(entries), nil
}

type StockDetail struct {
	Ticker              string                `json:"ticker"`
	CurrentSentiment    models.DailySummary   `json:"current_sentiment"`
	HistoricalSentiment []models.DailySummary `json:"historical_sentiment"`
	RecentMentions      []models.Mention      `json:"recent_mentions"`
}

// StockDetail bundles today's summary with a week of history and the latest
// mentions. It returns db.ErrNotFound when ticker has no summary today.
func (e *Engine) StockDetail(ctx context.Context, ticker string) (StockDetail, error) {
	if err := validTicker(ticker); err != nil {
		return StockDetail{}, err
	}

	current, err := e.store.FindSummary(ctx, ticker, e.Today())
	if errors.Is(err, db.ErrNotFound) {
		return StockDetail{}, fmt.Errorf("[Aggregator] stock %s: %w", ticker, err)
	}
	if err != nil {
		return StockDetail{}, fmt.Errorf("[Aggregator] stock %s current sentiment: %w", ticker, err)
	}

	history, err := e.HistoricalSentiment(ctx, ticker, DefaultHistoryDays)
	if err != nil {
		return StockDetail{}, err
	}
	mentions, err := e.RecentMentions(ctx, ticker, DefaultMentionsLimit)
	if err != nil {
		return StockDetail{}, err
	}

	return StockDetail{
		Ticker:              ticker,
		CurrentSentiment:    e.summariesInZone([]models.DailySummary{current})[0],
		HistoricalSentiment: history,
		RecentMentions:      mentions,
	}, nil
}
