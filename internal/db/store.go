package db

import (
	"context"
	"errors"
	"time"

	"github.com/spacesedan/tickersense/internal/models"
)

var ErrNotFound = errors.New("not found")

// MentionQuery filters FetchMentions. Zero values mean "no filter"; Start is
// inclusive and End exclusive. Results are ordered by CreatedAt descending.
type MentionQuery struct {
	Ticker string
	Start  time.Time
	End    time.Time
	Limit  int
}

type MentionStore interface {
	FetchMentions(ctx context.Context, q MentionQuery) ([]models.Mention, error)
	// InsertMention assigns ID and timestamps when unset and returns the stored
	// row. Inserting an ID that already exists is a no-op that returns the
	// existing row with created set to false.
	InsertMention(ctx context.Context, m models.Mention) (stored models.Mention, created bool, err error)
}

type SummaryStore interface {
	// FindSummary returns ErrNotFound when no row exists for (ticker, date).
	FindSummary(ctx context.Context, ticker string, date time.Time) (models.DailySummary, error)
	// UpsertSummary replaces every computed field of the (ticker, date) row,
	// creating it when absent.
	UpsertSummary(ctx context.Context, s models.DailySummary) (models.DailySummary, error)
	ListSummariesByDate(ctx context.Context, date time.Time, minMentions int) ([]models.DailySummary, error)
	// ListSummariesByTicker returns rows with from <= date <= to, newest first.
	ListSummariesByTicker(ctx context.Context, ticker string, from, to time.Time) ([]models.DailySummary, error)
}

type TrendingStore interface {
	FindEntry(ctx context.Context, ticker string, category models.TrendingCategory, date time.Time) (models.TrendingEntry, error)
	UpsertEntry(ctx context.Context, e models.TrendingEntry) (models.TrendingEntry, error)
	// ListEntries returns entries ordered by rank; limit <= 0 means all.
	ListEntries(ctx context.Context, category models.TrendingCategory, date time.Time, limit int) ([]models.TrendingEntry, error)
	// DeleteEntriesExcept removes (category, date) rows whose ticker is not in keep.
	DeleteEntriesExcept(ctx context.Context, category models.TrendingCategory, date time.Time, keep []string) (int, error)
}

// Store is the full persistence surface the engine works against.
type Store interface {
	MentionStore
	SummaryStore
	TrendingStore

	// WithTx runs fn against a transactional view of the store. Writes made
	// through the view become visible together when fn returns nil and are
	// discarded otherwise.
	WithTx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
	Close()
}
