package dynamodb

import (
	"fmt"
	"time"

	"github.com/spacesedan/tickersense/internal/models"
)

// Timestamps are stored as unix milliseconds.

// mentionItem is keyed on (ticker, id). CreatedKey backs the created-index
// LSI that window and recency queries read.
type mentionItem struct {
	Ticker         string  `dynamodbav:"ticker"`
	ID             string  `dynamodbav:"id"`
	CreatedKey     string  `dynamodbav:"created_sk"`
	Text           string  `dynamodbav:"text"`
	Sentiment      string  `dynamodbav:"sentiment"`
	SentimentScore float64 `dynamodbav:"sentiment_score"`
	Source         string  `dynamodbav:"source"`
	SourceID       *string `dynamodbav:"source_id,omitempty"`
	CreatedAt      int64   `dynamodbav:"created_at"`
	ProcessedAt    int64   `dynamodbav:"processed_at"`
}

// mentionSortKey orders a ticker's mentions by creation time, then id.
func mentionSortKey(createdAt time.Time, id string) string {
	return fmt.Sprintf("%020d#%s", createdAt.UnixMilli(), id)
}

func toMentionItem(m models.Mention) mentionItem {
	return mentionItem{
		Ticker:         m.Ticker,
		ID:             m.ID,
		CreatedKey:     mentionSortKey(m.CreatedAt, m.ID),
		Text:           m.Text,
		Sentiment:      string(m.SentimentLabel),
		SentimentScore: m.SentimentScore,
		Source:         m.Source,
		SourceID:       m.SourceID,
		CreatedAt:      m.CreatedAt.UnixMilli(),
		ProcessedAt:    m.ProcessedAt.UnixMilli(),
	}
}

func (i mentionItem) model() models.Mention {
	return models.Mention{
		ID:             i.ID,
		Ticker:         i.Ticker,
		Text:           i.Text,
		SentimentLabel: models.SentimentLabel(i.Sentiment),
		SentimentScore: i.SentimentScore,
		Source:         i.Source,
		SourceID:       i.SourceID,
		CreatedAt:      time.UnixMilli(i.CreatedAt).UTC(),
		ProcessedAt:    time.UnixMilli(i.ProcessedAt).UTC(),
	}
}

type summaryItem struct {
	Ticker         string  `dynamodbav:"ticker"`
	Date           int64   `dynamodbav:"date"`
	ID             string  `dynamodbav:"id"`
	MentionsCount  int     `dynamodbav:"mentions_count"`
	PositiveCount  int     `dynamodbav:"positive_mentions"`
	NegativeCount  int     `dynamodbav:"negative_mentions"`
	NeutralCount   int     `dynamodbav:"neutral_mentions"`
	SentimentIndex float64 `dynamodbav:"sentiment_index"`
	BullishScore   float64 `dynamodbav:"bullish_score"`
	BearishScore   float64 `dynamodbav:"bearish_score"`
	CreatedAt      int64   `dynamodbav:"created_at"`
	UpdatedAt      int64   `dynamodbav:"updated_at"`
}

func toSummaryItem(s models.DailySummary) summaryItem {
	return summaryItem{
		Ticker:         s.Ticker,
		Date:           s.Date.UnixMilli(),
		ID:             s.ID,
		MentionsCount:  s.MentionsCount,
		PositiveCount:  s.PositiveCount,
		NegativeCount:  s.NegativeCount,
		NeutralCount:   s.NeutralCount,
		SentimentIndex: s.SentimentIndex,
		BullishScore:   s.BullishScore,
		BearishScore:   s.BearishScore,
		CreatedAt:      s.CreatedAt.UnixMilli(),
		UpdatedAt:      s.UpdatedAt.UnixMilli(),
	}
}

func (i summaryItem) model() models.DailySummary {
	return models.DailySummary{
		ID:             i.ID,
		Ticker:         i.Ticker,
		Date:           time.UnixMilli(i.Date).UTC(),
		MentionsCount:  i.MentionsCount,
		PositiveCount:  i.PositiveCount,
		NegativeCount:  i.NegativeCount,
		NeutralCount:   i.NeutralCount,
		SentimentIndex: i.SentimentIndex,
		BullishScore:   i.BullishScore,
		BearishScore:   i.BearishScore,
		CreatedAt:      time.UnixMilli(i.CreatedAt).UTC(),
		UpdatedAt:      time.UnixMilli(i.UpdatedAt).UTC(),
	}
}

type trendingItem struct {
	CategoryDate   string  `dynamodbav:"category_date"`
	Ticker         string  `dynamodbav:"ticker"`
	ID             string  `dynamodbav:"id"`
	Rank           int     `dynamodbav:"rank"`
	Category       string  `dynamodbav:"category"`
	Score          float64 `dynamodbav:"score"`
	MentionsCount  int     `dynamodbav:"mentions_count"`
	SentimentIndex float64 `dynamodbav:"sentiment_index"`
	Date           int64   `dynamodbav:"date"`
	CreatedAt      int64   `dynamodbav:"created_at"`
	UpdatedAt      int64   `dynamodbav:"updated_at"`
}

func categoryDateKey(category models.TrendingCategory, date time.Time) string {
	return fmt.Sprintf("%s#%d", category, date.UnixMilli())
}

func toTrendingItem(e models.TrendingEntry) trendingItem {
	return trendingItem{
		CategoryDate:   categoryDateKey(e.Category, e.Date),
		Ticker:         e.Ticker,
		ID:             e.ID,
		Rank:           e.Rank,
		Category:       string(e.Category),
		Score:          e.Score,
		MentionsCount:  e.MentionsCount,
		SentimentIndex: e.SentimentIndex,
		Date:           e.Date.UnixMilli(),
		CreatedAt:      e.CreatedAt.UnixMilli(),
		UpdatedAt:      e.UpdatedAt.UnixMilli(),
	}
}

func (i trendingItem) model() models.TrendingEntry {
	return models.TrendingEntry{
		ID:             i.ID,
		Ticker:         i.Ticker,
		Rank:           i.Rank,
		Category:       models.TrendingCategory(i.Category),
		Score:          i.Score,
		MentionsCount:  i.MentionsCount,
		SentimentIndex: i.SentimentIndex,
		Date:           time.UnixMilli(i.Date).UTC(),
		CreatedAt:      time.UnixMilli(i.CreatedAt).UTC(),
		UpdatedAt:      time.UnixMilli(i.UpdatedAt).UTC(),
	}
}
