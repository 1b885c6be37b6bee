// Package handler is the HTTP read façade over the sentiment engine.
package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/spacesedan/tickersense/internal/aggregator"
	"github.com/spacesedan/tickersense/internal/db"
)

type RouterConfig struct {
	Engine     *aggregator.Engine
	Store      db.Store
	Scrapers   map[string]Scraper
	CORSOrigin string
	Logger     *slog.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware(cfg.CORSOrigin))
	engine.Use(requestLogger(cfg.Logger))

	(&HealthHandler{Store: cfg.Store}).Register(engine)
	(&SentimentHandler{Engine: cfg.Engine, Logger: cfg.Logger}).Register(engine)
	(&IngestHandler{Store: cfg.Store, Scrapers: cfg.Scrapers, Logger: cfg.Logger}).Register(engine)

	return engine
}
