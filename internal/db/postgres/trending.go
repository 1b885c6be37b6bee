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

const trendingColumns = `id, ticker, rank, category, score, mentions_count, sentiment_index,
	date, created_at, updated_at`

func (s *Store) FindEntry(ctx context.Context, ticker string, category models.TrendingCategory, date time.Time) (models.TrendingEntry, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+trendingColumns+` FROM trending_stocks
		WHERE ticker = $1 AND category = $2 AND date = $3`,
		ticker, string(category), date)
	if err != nil {
		return models.TrendingEntry{}, fmt.Errorf("[Postgres] find trending %s/%s: %w", category, ticker, err)
	}
	entry, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[models.TrendingEntry])
	if errors.Is(err, pgx.ErrNoRows) {
		return models.TrendingEntry{}, db.ErrNotFound
	}
	if err != nil {
		return models.TrendingEntry{}, fmt.Errorf("[Postgres] scan trending %s/%s: %w", category, ticker, err)
	}
	return entry, nil
}

func (s *Store) UpsertEntry(ctx context.Context, e models.TrendingEntry) (models.TrendingEntry, error) {
	now := s.now()
	rows, err := s.q.Query(ctx, `
		INSERT INTO trending_stocks (`+trendingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (ticker, category, date) DO UPDATE SET
			rank            = EXCLUDED.rank,
			score           = EXCLUDED.score,
			mentions_count  = EXCLUDED.mentions_count,
			sentiment_index = EXCLUDED.sentiment_index,
			updated_at      = EXCLUDED.updated_at
		RETURNING `+trendingColumns,
		uuid.NewString(), e.Ticker, e.Rank, string(e.Category), e.Score,
		e.MentionsCount, e.SentimentIndex, e.Date, now)
	if err != nil {
		return models.TrendingEntry{}, fmt.Errorf("[Postgres] upsert trending %s/%s: %w", e.Category, e.Ticker, err)
	}
	stored, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[models.TrendingEntry])
	if err != nil {
		return models.TrendingEntry{}, fmt.Errorf("[Postgres] scan upserted trending %s/%s: %w", e.Category, e.Ticker, err)
	}
	return stored, nil
}

func (s *Store) ListEntries(ctx context.Context, category models.TrendingCategory, date time.Time, limit int) ([]models.TrendingEntry, error) {
	query := `
		SELECT ` + trendingColumns + ` FROM trending_stocks
		WHERE category = $1 AND date = $2
		ORDER BY rank, ticker`
	args := []any{string(category), date}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("[Postgres] list trending %s: %w", category, err)
	}
	entries, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.TrendingEntry])
	if err != nil {
		return nil, fmt.Errorf("[Postgres] scan trending %s: %w", category, err)
	}
	return entries, nil
}

func (s *Store) DeleteEntriesExcept(ctx context.Context, category models.TrendingCategory, date time.Time, keep []string) (int, error) {
	if keep == nil {
		keep = []string{}
	}
	tag, err := s.q.Exec(ctx, `
		DELETE FROM trending_stocks
		WHERE category = $1 AND date = $2 AND NOT (ticker = ANY($3))`,
		string(category), date, keep)
	if err != nil {
		return 0, fmt.Errorf("[Postgres] prune trending %s: %w", category, err)
	}
	return int(tag.RowsAffected()), nil
}
