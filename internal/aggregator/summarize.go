package aggregator

import (
	"sort"
	"time"

	"github.com/spacesedan/tickersense/internal/models"
)

type labelCounts struct {
	positive int
	negative int
	neutral  int
}

// NewSummary derives every computed field of a DailySummary from the label
// counts. mentions_count is always the sum of the three counts.
func NewSummary(ticker string, day time.Time, positive, negative, neutral int) models.DailySummary {
	total := positive + negative + neutral

	index := 0.0
	if total > 0 {
		index = float64(positive-negative) / float64(total)
	}

	return models.DailySummary{
		Ticker:         ticker,
		Date:           day,
		MentionsCount:  total,
		PositiveCount:  positive,
		NegativeCount:  negative,
		NeutralCount:   neutral,
		SentimentIndex: index,
		BullishScore:   float64(total) * max(0, index),
		BearishScore:   float64(total) * max(0, -index),
	}
}

// Summarize groups mentions by exact ticker and builds one summary per ticker
// for day. Labels other than positive/negative count as neutral. The result
// is sorted by ticker; tickers without mentions produce nothing. The second
// return value counts mentions whose label was not recognised.
func Summarize(mentions []models.Mention, day time.Time) ([]models.DailySummary, int) {
	byTicker := make(map[string]*labelCounts)
	unknown := 0

	for _, m := range mentions {
		c, ok := byTicker[m.Ticker]
		if !ok {
			c = &labelCounts{}
			byTicker[m.Ticker] = c
		}
		switch m.SentimentLabel {
		case models.SentimentPositive:
			c.positive++
		case models.SentimentNegative:
			c.negative++
		case models.SentimentNeutral:
			c.neutral++
		default:
			c.neutral++
			unknown++
		}
	}

	tickers := make([]string, 0, len(byTicker))
	for t := range byTicker {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	summaries := make([]models.DailySummary, 0, len(tickers))
	for _, t := range tickers {
		c := byTicker[t]
		summaries = append(summaries, NewSummary(t, day, c.positive, c.negative, c.neutral))
	}
	return summaries, unknown
}
