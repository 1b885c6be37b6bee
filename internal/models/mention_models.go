package models

import (
	"strings"
	"time"
)

type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
)

// ParseSentimentLabel accepts the three known labels in any casing.
func ParseSentimentLabel(s string) (SentimentLabel, bool) {
	switch SentimentLabel(strings.ToLower(strings.TrimSpace(s))) {
	case SentimentPositive:
		return SentimentPositive, true
	case SentimentNegative:
		return SentimentNegative, true
	case SentimentNeutral:
		return SentimentNeutral, true
	}
	return "", false
}

const (
	SourceReddit = "reddit"
	SourceNews   = "news"
)

// Mention is one observation of one ticker in one piece of text. Label and
// score come from the classifier at ingestion time and are never recomputed.
type Mention struct {
	ID             string         `json:"id" db:"id"`
	Ticker         string         `json:"ticker" db:"ticker"`
	Text           string         `json:"text" db:"text"`
	SentimentLabel SentimentLabel `json:"sentiment" db:"sentiment"`
	SentimentScore float64        `json:"sentiment_score" db:"sentiment_score"`
	Source         string         `json:"source" db:"source"`
	SourceID       *string        `json:"source_id,omitempty" db:"source_id"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	ProcessedAt    time.Time      `json:"processed_at" db:"processed_at"`
}
