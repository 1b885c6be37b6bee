// Package app holds the wiring shared by the binaries under cmd/.
package app

import (
	"context"
	"log/slog"

	"github.com/spacesedan/tickersense/config"
	"github.com/spacesedan/tickersense/internal/aggregator"
	"github.com/spacesedan/tickersense/internal/clients"
	"github.com/spacesedan/tickersense/internal/db"
	"github.com/spacesedan/tickersense/internal/ingest"
	"github.com/spacesedan/tickersense/internal/logging"
	"github.com/spacesedan/tickersense/internal/models"
)

// Bootstrap loads configuration and installs the default logger.
func Bootstrap() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.InitLogger(cfg.App.LogLevel)
	slog.Info("[App] Configuration loaded",
		slog.String("env", cfg.App.Env),
		slog.String("timezone", cfg.App.Timezone),
		slog.String("store", cfg.Store.Backend))
	return cfg, nil
}

func NewEngine(store db.Store, cfg *config.Config) (*aggregator.Engine, error) {
	loc, err := cfg.App.Location()
	if err != nil {
		return nil, err
	}
	return aggregator.NewEngine(store, aggregator.EngineConfig{
		Location:   loc,
		PruneStale: cfg.Ranking.PruneStale,
		Logger:     slog.Default(),
	}), nil
}

// NewValkey connects to Valkey when an address is configured. It returns nil
// without error otherwise, which disables dedup and run locks.
func NewValkey(ctx context.Context, cfg config.ValkeyConfig) (*clients.ValkeyClient, error) {
	if !cfg.Enabled() {
		slog.Warn("[App] VALKEY_INIT_ADDRESS not set; dedup and run locks disabled")
		return nil, nil
	}
	return clients.NewValkeyClient(ctx, clients.ValkeyOptions{
		InitAddress: cfg.InitAddress,
		Password:    cfg.Password,
		TLS:         cfg.TLS,
	})
}

// NewSources builds the Reddit and news sources keyed by source name.
func NewSources(cfg *config.Config) map[string]ingest.Source {
	return map[string]ingest.Source{
		models.SourceReddit: &ingest.RedditSource{
			Client: clients.NewRedditClient(clients.RedditConfig{
				ClientID:     cfg.Reddit.ClientID,
				ClientSecret: cfg.Reddit.ClientSecret,
				UserAgent:    cfg.Reddit.UserAgent,
			}),
			Subreddits: cfg.Reddit.Subreddits,
			Limit:      cfg.Reddit.PostLimit,
			MaxAge:     cfg.Reddit.MaxAge,
		},
		models.SourceNews: &ingest.NewsSource{
			Client:   clients.NewNewsAPIClient(cfg.News.APIKey),
			Queries:  cfg.News.Queries,
			DaysBack: cfg.News.DaysBack,
		},
	}
}

// NewPipelines pairs every source with sink. dedup may be nil.
func NewPipelines(cfg *config.Config, sink ingest.Sink, dedup *clients.ValkeyClient) map[string]*ingest.Pipeline {
	pipelines := make(map[string]*ingest.Pipeline)
	for name, source := range NewSources(cfg) {
		p := &ingest.Pipeline{
			Source:   source,
			Sink:     sink,
			DedupTTL: cfg.Valkey.DedupTTL,
			Logger:   slog.Default(),
		}
		// A nil *ValkeyClient must not become a non-nil interface.
		if dedup != nil {
			p.Dedup = dedup
		}
		pipelines[name] = p
	}
	return pipelines
}
