package aggregator

import (
	"sort"

	"github.com/spacesedan/tickersense/internal/models"
)

const (
	// TopN is the number of ranked slots per category and day.
	TopN = 10
	// MinMentions is the smallest mentions_count a summary needs to be ranked.
	MinMentions = 1
)

// RankSummaries orders candidates for one category and assigns dense 1-based
// ranks to the top limit of them.
//
// Order: category score descending, then mentions_count descending, then
// ticker ascending. Candidates scoring 0 in the category are not ranked.
func RankSummaries(summaries []models.DailySummary, category models.TrendingCategory, limit int) []models.TrendingEntry {
	candidates := make([]models.DailySummary, 0, len(summaries))
	for _, s := range summaries {
		if s.MentionsCount < MinMentions || category.Score(s) <= 0 {
			continue
		}
		candidates = append(candidates, s)
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if sa, sb := category.Score(a), category.Score(b); sa != sb {
			return sa > sb
		}
		if a.MentionsCount != b.MentionsCount {
			return a.MentionsCount > b.MentionsCount
		}
		return a.Ticker < b.Ticker
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	entries := make([]models.TrendingEntry, 0, len(candidates))
	for i, s := range candidates {
		entries = append(entries, models.TrendingEntry{
			Ticker:         s.Ticker,
			Rank:           i + 1,
			Category:       category,
			Score:          category.Score(s),
			MentionsCount:  s.MentionsCount,
			SentimentIndex: s.SentimentIndex,
			Date:           s.Date,
		})
	}
	return entries
}
