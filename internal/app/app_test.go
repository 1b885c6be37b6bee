package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacesedan/tickersense/config"
	"github.com/spacesedan/tickersense/internal/db/memory"
	"github.com/spacesedan/tickersense/internal/ingest"
	"github.com/spacesedan/tickersense/internal/models"
)

func testConfig() *config.Config {
	return &config.Config{
		App:     config.AppConfig{Timezone: "America/New_York"},
		Ranking: config.RankingConfig{PruneStale: true},
		Valkey:  config.ValkeyConfig{DedupTTL: time.Hour},
		Reddit: config.RedditConfig{
			Subreddits: []string{"stocks"},
			PostLimit:  10,
			MaxAge:     time.Hour,
		},
		News: config.NewsConfig{APIKey: "k", Queries: []string{"nasdaq"}, DaysBack: 1},
	}
}

func TestNewEngine_UsesConfiguredTimezone(t *testing.T) {
	engine, err := NewEngine(memory.New(), testConfig())
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", engine.Location().String())
}

func TestNewEngine_RejectsBadTimezone(t *testing.T) {
	cfg := testConfig()
	cfg.App.Timezone = "Mars/Olympus"
	_, err := NewEngine(memory.New(), cfg)
	assert.Error(t, err)
}

func TestNewPipelines(t *testing.T) {
	sink := ingest.StoreSink{Store: memory.New()}
	pipelines := NewPipelines(testConfig(), sink, nil)

	require.Len(t, pipelines, 2)
	for name, p := range pipelines {
		assert.Equal(t, name, p.Source.Name())
		assert.Nil(t, p.Dedup)
		assert.Equal(t, time.Hour, p.DedupTTL)
	}
	assert.Contains(t, pipelines, models.SourceReddit)
	assert.Contains(t, pipelines, models.SourceNews)
}
