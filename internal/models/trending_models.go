package models

import (
	"fmt"
	"time"
)

type TrendingCategory string

const (
	CategoryBullish TrendingCategory = "bullish"
	CategoryBearish TrendingCategory = "bearish"
)

func ParseTrendingCategory(s string) (TrendingCategory, error) {
	switch TrendingCategory(s) {
	case CategoryBullish, CategoryBearish:
		return TrendingCategory(s), nil
	}
	return "", fmt.Errorf("unknown trending category %q", s)
}

// Score picks the summary field this category ranks by.
func (c TrendingCategory) Score(s DailySummary) float64 {
	if c == CategoryBearish {
		return s.BearishScore
	}
	return s.BullishScore
}

// TrendingEntry is one ranked slot of one category on one day. Rank is 1-based.
type TrendingEntry struct {
	ID             string           `json:"id" db:"id"`
	Ticker         string           `json:"ticker" db:"ticker"`
	Rank           int              `json:"rank" db:"rank"`
	Category       TrendingCategory `json:"category" db:"category"`
	Score          float64          `json:"score" db:"score"`
	MentionsCount  int              `json:"mentions_count" db:"mentions_count"`
	SentimentIndex float64          `json:"sentiment_index" db:"sentiment_index"`
	Date           time.Time        `json:"date" db:"date"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}
