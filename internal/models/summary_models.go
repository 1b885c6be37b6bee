package models

import "time"

// DailySummary is the aggregate sentiment of one ticker on one calendar day.
// Date is the start of the day in the service's reference timezone.
type DailySummary struct {
	ID             string    `json:"id" db:"id"`
	Ticker         string    `json:"ticker" db:"ticker"`
	Date           time.Time `json:"date" db:"date"`
	MentionsCount  int       `json:"mentions_count" db:"mentions_count"`
	PositiveCount  int       `json:"positive_mentions" db:"positive_mentions"`
	NegativeCount  int       `json:"negative_mentions" db:"negative_mentions"`
	NeutralCount   int       `json:"neutral_mentions" db:"neutral_mentions"`
	SentimentIndex float64   `json:"sentiment_index" db:"sentiment_index"`
	BullishScore   float64   `json:"bullish_score" db:"bullish_score"`
	BearishScore   float64   `json:"bearish_score" db:"bearish_score"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// SameComputation reports whether two summaries carry identical computed
// fields, ignoring storage bookkeeping.
func (s DailySummary) SameComputation(o DailySummary) bool {
	return s.Ticker == o.Ticker &&
		s.Date.Equal(o.Date) &&
		s.MentionsCount == o.MentionsCount &&
		s.PositiveCount == o.PositiveCount &&
		s.NegativeCount == o.NegativeCount &&
		s.NeutralCount == o.NeutralCount &&
		s.SentimentIndex == o.SentimentIndex &&
		s.BullishScore == o.BullishScore &&
		s.BearishScore == o.BearishScore
}
