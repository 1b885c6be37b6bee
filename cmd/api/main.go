package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spacesedan/tickersense/internal/app"
	"github.com/spacesedan/tickersense/internal/db/backend"
	"github.com/spacesedan/tickersense/internal/handler"
	"github.com/spacesedan/tickersense/internal/ingest"
	"github.com/spacesedan/tickersense/internal/sentiment"
)

func main() {
	cfg, err := app.Bootstrap()
	if err != nil {
		slog.Error("[API] Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := backend.Open(ctx, cfg.Store)
	if err != nil {
		slog.Error("[API] Failed to open store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	engine, err := app.NewEngine(store, cfg)
	if err != nil {
		slog.Error("[API] Failed to build engine", slog.String("error", err.Error()))
		os.Exit(1)
	}

	valkey, err := app.NewValkey(ctx, cfg.Valkey)
	if err != nil {
		slog.Warn("[API] Valkey unavailable, scraping without dedup", slog.String("error", err.Error()))
		valkey = nil
	}
	if valkey != nil {
		defer valkey.Close()
	}

	// Scrapes triggered over HTTP classify in-process and write mentions
	// directly instead of going through Kafka.
	sink := ingest.StoreSink{Store: store, Classifier: sentiment.NewVaderClassifier()}
	scrapers := make(map[string]handler.Scraper)
	for name, p := range app.NewPipelines(cfg, sink, valkey) {
		scrapers[name] = p
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(handler.RouterConfig{
		Engine:     engine,
		Store:      store,
		Scrapers:   scrapers,
		CORSOrigin: cfg.HTTP.CORSOrigin,
		Logger:     slog.Default(),
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("[API] Listening", slog.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[API] Server failed", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("[API] Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("[API] Shutdown failed", slog.String("error", err.Error()))
	}
}
