package ingest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/spacesedan/tickersense/internal/models"
)

type NewsAPI interface {
	Everything(ctx context.Context, query string, from, to time.Time) (*models.NewsAPIEverythingResponse, error)
}

// NewsSource searches NewsAPI for each query and merges the results by URL.
type NewsSource struct {
	Client   NewsAPI
	Queries  []string
	DaysBack int
	Now      func() time.Time
}

func (n *NewsSource) Name() string { return models.SourceNews }

func (n *NewsSource) Fetch(ctx context.Context) ([]models.RawContent, error) {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	to := now()
	from := to.AddDate(0, 0, -max(n.DaysBack, 1))

	seen := make(map[string]struct{})
	var items []models.RawContent
	for _, query := range n.Queries {
		if err := ctx.Err(); err != nil {
			return items, err
		}

		res, err := n.Client.Everything(ctx, query, from, to)
		if err != nil {
			slog.Error("[NewsSource] Error fetching news",
				slog.String("query", query),
				slog.String("error", err.Error()))
			continue
		}

		for _, article := range res.Articles {
			if article.URL == "" {
				continue
			}
			if _, dup := seen[article.URL]; dup {
				continue
			}
			seen[article.URL] = struct{}{}
			items = append(items, ArticleToRaw(article, to))
		}
	}
	return items, nil
}

// ArticleToRaw stamps the article with the fetch time, so news mentions count
// toward the day they were observed.
func ArticleToRaw(a models.NewsAPIArticle, fetchedAt time.Time) models.RawContent {
	return models.RawContent{
		ContentID: ContentID(models.SourceNews, a.URL),
		Source:    models.SourceNews,
		SourceID:  a.URL,
		Text:      strings.TrimSpace(a.Title + " " + a.Description),
		Metadata: models.ContentMetadata{
			Timestamp: fetchedAt,
			Author:    a.Author,
			Title:     a.Title,
			URL:       a.URL,
		},
	}
}
