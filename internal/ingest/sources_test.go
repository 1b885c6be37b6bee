package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacesedan/tickersense/internal/models"
)

type fakeReddit struct {
	posts  map[string][]models.RedditPost
	limits []int
}

func (f *fakeReddit) FetchHotPosts(_ context.Context, subreddit string, limit int) ([]models.RedditPost, error) {
	f.limits = append(f.limits, limit)
	if subreddit == "broken" {
		return nil, errors.New("403")
	}
	return f.posts[subreddit], nil
}

func TestRedditSource_FiltersOldPostsAndSplitsLimit(t *testing.T) {
	client := &fakeReddit{posts: map[string][]models.RedditPost{
		"stocks": {
			{PostID: "new", PostTitle: "$AAPL", PostContent: "calls", CreatedAt: now.Add(-time.Hour), Subreddit: "stocks"},
			{PostID: "old", PostTitle: "$AAPL", CreatedAt: now.Add(-30 * time.Hour)},
		},
	}}
	src := &RedditSource{
		Client:     client,
		Subreddits: []string{"stocks", "broken"},
		Limit:      100,
		MaxAge:     24 * time.Hour,
		Now:        func() time.Time { return now },
	}

	items, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "new", items[0].SourceID)
	assert.Equal(t, "$AAPL calls", items[0].Text)
	assert.Equal(t, "stocks", items[0].Metadata.Subreddit)
	assert.Equal(t, []int{50, 50}, client.limits)
}

type fakeNews struct {
	byQuery map[string][]models.NewsAPIArticle
	from    time.Time
}

func (f *fakeNews) Everything(_ context.Context, query string, from, _ time.Time) (*models.NewsAPIEverythingResponse, error) {
	f.from = from
	return &models.NewsAPIEverythingResponse{Status: "ok", Articles: f.byQuery[query]}, nil
}

func TestNewsSource_DedupsByURL(t *testing.T) {
	client := &fakeNews{byQuery: map[string][]models.NewsAPIArticle{
		"stocks":   {{URL: "https://a", Title: "$NVDA soars", Description: "record"}, {URL: ""}},
		"earnings": {{URL: "https://a", Title: "$NVDA soars"}, {URL: "https://b", Title: "$INTC slides"}},
	}}
	src := &NewsSource{
		Client:   client,
		Queries:  []string{"stocks", "earnings"},
		DaysBack: 1,
		Now:      func() time.Time { return now },
	}

	items, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "$NVDA soars record", items[0].Text)
	assert.Equal(t, "https://b", items[1].SourceID)
	assert.True(t, items[0].Metadata.Timestamp.Equal(now))
	assert.True(t, client.from.Equal(now.AddDate(0, 0, -1)))
}
