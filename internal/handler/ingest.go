package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spacesedan/tickersense/internal/db"
	"github.com/spacesedan/tickersense/internal/ingest"
	"github.com/spacesedan/tickersense/internal/metrics"
	"github.com/spacesedan/tickersense/internal/models"
)

// Scraper runs one fetch pass; *ingest.Pipeline satisfies it.
type Scraper interface {
	Run(ctx context.Context) (ingest.IngestResult, error)
}

// IngestHandler accepts pre-scored mentions and triggers scrapes.
type IngestHandler struct {
	Store db.MentionStore
	// Scrapers are keyed by source name (reddit, news).
	Scrapers map[string]Scraper
	Logger   *slog.Logger
}

type mentionRequest struct {
	Ticker         string     `json:"ticker" binding:"required"`
	Text           string     `json:"text"`
	SentimentLabel string     `json:"sentiment" binding:"required"`
	SentimentScore float64    `json:"sentiment_score"`
	Source         string     `json:"source" binding:"required"`
	SourceID       *string    `json:"source_id"`
	CreatedAt      *time.Time `json:"created_at"`
}

func (h *IngestHandler) Register(r *gin.Engine) {
	r.POST("/mentions", h.createMention)
	r.POST("/scrape/:source", h.scrape)
}

func (h *IngestHandler) createMention(c *gin.Context) {
	var req mentionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error())
		return
	}

	m := models.Mention{
		Ticker:         req.Ticker,
		Text:           req.Text,
		SentimentLabel: models.SentimentLabel(req.SentimentLabel),
		SentimentScore: req.SentimentScore,
		Source:         req.Source,
		SourceID:       req.SourceID,
	}
	if req.CreatedAt != nil {
		m.CreatedAt = *req.CreatedAt
	}

	m, err := ingest.ValidateMention(m)
	if err != nil {
		fail(c, h.Logger, "create_mention", err)
		return
	}

	stored, created, err := h.Store.InsertMention(c.Request.Context(), m)
	if err != nil {
		metrics.MentionsSkipped.WithLabelValues(m.Source, "store_error").Inc()
		fail(c, h.Logger, "create_mention", err)
		return
	}
	if !created {
		c.JSON(http.StatusOK, stored)
		return
	}
	metrics.MentionsIngested.WithLabelValues(m.Source).Inc()
	c.JSON(http.StatusCreated, stored)
}

func (h *IngestHandler) scrape(c *gin.Context) {
	source := c.Param("source")
	scraper, ok := h.Scrapers[source]
	if !ok {
		Error(c, http.StatusNotFound, fmt.Sprintf("unknown source %q", source))
		return
	}

	res, err := scraper.Run(c.Request.Context())
	if err != nil {
		fail(c, h.Logger, "scrape_"+source, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     fmt.Sprintf("Scraped and saved %d %s mentions", res.Saved, source),
		"total_found": res.Found,
		"saved":       res.Saved,
		"skipped":     res.Skipped,
	})
}
