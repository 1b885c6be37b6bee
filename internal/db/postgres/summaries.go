package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spacesedan/tickersense/internal/db"
	"github.com/spacesedan/tickersense/internal/models"
)

const summaryColumns = `id, ticker, date, mentions_count, positive_mentions, negative_mentions,
	neutral_mentions, sentiment_index, bullish_score, bearish_score, created_at, updated_at`

func (s *Store) FindSummary(ctx context.Context, ticker string, date time.Time) (models.DailySummary, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+summaryColumns+` FROM daily_sentiment_summaries WHERE ticker = $1 AND date = $2`,
		ticker, date)
	if err != nil {
		return models.DailySummary{}, fmt.Errorf("[Postgres] find summary %s: %w", ticker, err)
	}
	sum, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[models.DailySummary])
	if errors.Is(err, pgx.ErrNoRows) {
		return models.DailySummary{}, db.ErrNotFound
	}
	if err != nil {
		return models.DailySummary{}, fmt.Errorf("[Postgres] scan summary %s: %w", ticker, err)
	}
	return sum, nil
}

// UpsertSummary relies on the (ticker, date) unique constraint; id and
// created_at of an existing row are kept.
func (s *Store) UpsertSummary(ctx context.Context, sum models.DailySummary) (models.DailySummary, error) {
	now := s.now()
	rows, err := s.q.Query(ctx, `
		INSERT INTO daily_sentiment_summaries (`+summaryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (ticker, date) DO UPDATE SET
			mentions_count    = EXCLUDED.mentions_count,
			positive_mentions = EXCLUDED.positive_mentions,
			negative_mentions = EXCLUDED.negative_mentions,
			neutral_mentions  = EXCLUDED.neutral_mentions,
			sentiment_index   = EXCLUDED.sentiment_index,
			bullish_score     = EXCLUDED.bullish_score,
			bearish_score     = EXCLUDED.bearish_score,
			updated_at        = EXCLUDED.updated_at
		RETURNING `+summaryColumns,
		uuid.NewString(), sum.Ticker, sum.Date, sum.MentionsCount,
		sum.PositiveCount, sum.NegativeCount, sum.NeutralCount,
		sum.SentimentIndex, sum.BullishScore, sum.BearishScore, now)
	if err != nil {
		return models.DailySummary{}, fmt.Errorf("[Postgres] upsert summary %s: %w", sum.Ticker, err)
	}
	stored, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[models.DailySummary])
	if err != nil {
		return models.DailySummary{}, fmt.Errorf("[Postgres] scan upserted summary %s: %w", sum.Ticker, err)
	}
	return stored, nil
}

func (s *Store) ListSummariesByDate(ctx context.Context, date time.Time, minMentions int) ([]models.DailySummary, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+summaryColumns+` FROM daily_sentiment_summaries
		WHERE date = $1 AND mentions_count >= $2
		ORDER BY ticker`,
		date, minMentions)
	if err != nil {
		return nil, fmt.Errorf("[Postgres] list summaries by date: %w", err)
	}
	summaries, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.DailySummary])
	if err != nil {
		return nil, fmt.Errorf("[Postgres] scan summaries: %w", err)
	}
	return summaries, nil
}

func (s *Store) ListSummariesByTicker(ctx context.Context, ticker string, from, to time.Time) ([]models.DailySummary, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+summaryColumns+` FROM daily_sentiment_summaries
		WHERE ticker = $1 AND date >= $2 AND date <= $3
		ORDER BY date DESC`,
		ticker, from, to)
	if err != nil {
		return nil, fmt.Errorf("[Postgres] list summaries for %s: %w", ticker, err)
	}
	summaries, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.DailySummary])
	if err != nil {
		return nil, fmt.Errorf("[Postgres] scan summaries for %s: %w", ticker, err)
	}
	return summaries, nil
}
