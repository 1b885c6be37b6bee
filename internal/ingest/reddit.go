package ingest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/spacesedan/tickersense/internal/models"
)

type RedditAPI interface {
	FetchHotPosts(ctx context.Context, subreddit string, limit int) ([]models.RedditPost, error)
}

// RedditSource reads hot posts of finance subreddits.
type RedditSource struct {
	Client     RedditAPI
	Subreddits []string
	// Limit is split evenly across subreddits.
	Limit  int
	MaxAge time.Duration
	Now    func() time.Time
}

func (r *RedditSource) Name() string { return models.SourceReddit }

func (r *RedditSource) Fetch(ctx context.Context) ([]models.RawContent, error) {
	if len(r.Subreddits) == 0 {
		return nil, nil
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	perSubreddit := max(r.Limit/len(r.Subreddits), 1)
	cutoff := now().Add(-r.MaxAge)

	var items []models.RawContent
	for _, subreddit := range r.Subreddits {
		if err := ctx.Err(); err != nil {
			return items, err
		}

		posts, err := r.Client.FetchHotPosts(ctx, subreddit, perSubreddit)
		if err != nil {
			slog.Error("[RedditSource] Error scraping subreddit",
				slog.String("subreddit", subreddit),
				slog.String("error", err.Error()))
			continue
		}

		for _, post := range posts {
			if r.MaxAge > 0 && post.CreatedAt.Before(cutoff) {
				continue
			}
			items = append(items, RedditPostToRaw(post))
		}
	}
	return items, nil
}

func RedditPostToRaw(p models.RedditPost) models.RawContent {
	return models.RawContent{
		ContentID: ContentID(models.SourceReddit, p.PostID),
		Source:    models.SourceReddit,
		SourceID:  p.PostID,
		Text:      strings.TrimSpace(p.PostTitle + " " + p.PostContent),
		Metadata: models.ContentMetadata{
			Timestamp: p.CreatedAt,
			Author:    p.Author,
			Subreddit: p.Subreddit,
			Title:     p.PostTitle,
			URL:       p.Permalink,
		},
	}
}
