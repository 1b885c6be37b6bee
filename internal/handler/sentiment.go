package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spacesedan/tickersense/internal/aggregator"
	"github.com/spacesedan/tickersense/internal/models"
)

const defaultMentionsPageSize = 50

// SentimentHandler serves the dashboard and per-ticker reads, and triggers
// aggregation on demand.
type SentimentHandler struct {
	Engine *aggregator.Engine
	Logger *slog.Logger
}

type dashboardResponse struct {
	BullishStocks []models.TrendingEntry `json:"bullish_stocks"`
	BearishStocks []models.TrendingEntry `json:"bearish_stocks"`
	LastUpdated   time.Time              `json:"last_updated"`
}

func (h *SentimentHandler) Register(r *gin.Engine) {
	r.GET("/dashboard", h.dashboard)
	r.GET("/stock/:ticker", h.stockDetail)
	r.GET("/sentiment/:ticker/history", h.history)
	r.GET("/mentions/:ticker", h.mentions)
	r.POST("/aggregate", h.aggregate)
}

func (h *SentimentHandler) dashboard(c *gin.Context) {
	ctx := c.Request.Context()

	bullish, err := h.Engine.Trending(ctx, models.CategoryBullish, time.Time{}, aggregator.DefaultDashboardLimit)
	if err != nil {
		fail(c, h.Logger, "dashboard", err)
		return
	}
	bearish, err := h.Engine.Trending(ctx, models.CategoryBearish, time.Time{}, aggregator.DefaultDashboardLimit)
	if err != nil {
		fail(c, h.Logger, "dashboard", err)
		return
	}

	c.JSON(http.StatusOK, dashboardResponse{
		BullishStocks: nonNil(bullish),
		BearishStocks: nonNil(bearish),
		LastUpdated:   time.Now(),
	})
}

func (h *SentimentHandler) stockDetail(c *gin.Context) {
	detail, err := h.Engine.StockDetail(c.Request.Context(), tickerParam(c))
	if err != nil {
		if statusFor(err) == http.StatusNotFound {
			Error(c, http.StatusNotFound, "Stock not found")
			return
		}
		fail(c, h.Logger, "stock_detail", err)
		return
	}
	detail.HistoricalSentiment = nonNil(detail.HistoricalSentiment)
	detail.RecentMentions = nonNil(detail.RecentMentions)
	c.JSON(http.StatusOK, detail)
}

func (h *SentimentHandler) history(c *gin.Context) {
	ticker := tickerParam(c)
	days, err := intQuery(c, "days", aggregator.DefaultHistoryDays)
	if err != nil {
		fail(c, h.Logger, "history", err)
		return
	}

	history, err := h.Engine.HistoricalSentiment(c.Request.Context(), ticker, days)
	if err != nil {
		fail(c, h.Logger, "history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ticker":  ticker,
		"history": nonNil(history),
		"days":    days,
	})
}

func (h *SentimentHandler) mentions(c *gin.Context) {
	ticker := tickerParam(c)
	limit, err := intQuery(c, "limit", defaultMentionsPageSize)
	if err != nil {
		fail(c, h.Logger, "mentions", err)
		return
	}

	mentions, err := h.Engine.RecentMentions(c.Request.Context(), ticker, limit)
	if err != nil {
		fail(c, h.Logger, "mentions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ticker":   ticker,
		"mentions": nonNil(mentions),
		"count":    len(mentions),
	})
}

// aggregate runs aggregate then rank for ?date=YYYY-MM-DD, today by default.
func (h *SentimentHandler) aggregate(c *gin.Context) {
	var date time.Time
	if raw := c.Query("date"); raw != "" {
		d, err := aggregator.ParseDate(raw, h.Engine.Location())
		if err != nil {
			fail(c, h.Logger, "aggregate", err)
			return
		}
		date = d
	}

	res, err := h.Engine.Run(c.Request.Context(), date)
	if err != nil {
		fail(c, h.Logger, "aggregate", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":          "Sentiment aggregation completed",
		"date":             res.Date.Format(aggregator.DateLayout),
		"stocks_processed": len(res.Summaries),
		"bullish_stocks":   len(res.Bullish),
		"bearish_stocks":   len(res.Bearish),
	})
}

// nonNil keeps empty lists rendering as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
