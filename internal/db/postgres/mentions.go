package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spacesedan/tickersense/internal/db"
	"github.com/spacesedan/tickersense/internal/models"
)

const mentionColumns = `id, ticker, text, sentiment, sentiment_score, source, source_id, created_at, processed_at`

func (s *Store) FetchMentions(ctx context.Context, q db.MentionQuery) ([]models.Mention, error) {
	var (
		where []string
		args  []any
	)
	if q.Ticker != "" {
		args = append(args, q.Ticker)
		where = append(where, fmt.Sprintf("ticker = $%d", len(args)))
	}
	if !q.Start.IsZero() {
		args = append(args, q.Start)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !q.End.IsZero() {
		args = append(args, q.End)
		where = append(where, fmt.Sprintf("created_at < $%d", len(args)))
	}

	query := `SELECT ` + mentionColumns + ` FROM stock_mentions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("[Postgres] query mentions: %w", err)
	}
	mentions, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.Mention])
	if err != nil {
		return nil, fmt.Errorf("[Postgres] scan mentions: %w", err)
	}
	return mentions, nil
}

// InsertMention returns the row the table holds for m.ID. When the ID was
// already present the existing row comes back and created is false.
func (s *Store) InsertMention(ctx context.Context, m models.Mention) (models.Mention, bool, error) {
	now := s.now()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.ProcessedAt.IsZero() {
		m.ProcessedAt = now
	}

	rows, err := s.q.Query(ctx, `
		INSERT INTO stock_mentions (`+mentionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
		RETURNING `+mentionColumns,
		m.ID, m.Ticker, m.Text, string(m.SentimentLabel), m.SentimentScore,
		m.Source, m.SourceID, m.CreatedAt, m.ProcessedAt)
	if err != nil {
		return models.Mention{}, false, fmt.Errorf("[Postgres] insert mention %s: %w", m.Ticker, err)
	}
	stored, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[models.Mention])
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.Mention{}, false, fmt.Errorf("[Postgres] insert mention %s: %w", m.Ticker, err)
	}

	rows, err = s.q.Query(ctx, `SELECT `+mentionColumns+` FROM stock_mentions WHERE id = $1`, m.ID)
	if err != nil {
		return models.Mention{}, false, fmt.Errorf("[Postgres] find mention %s: %w", m.ID, err)
	}
	existing, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[models.Mention])
	if err != nil {
		return models.Mention{}, false, fmt.Errorf("[Postgres] find mention %s: %w", m.ID, err)
	}
	return existing, false, nil
}
