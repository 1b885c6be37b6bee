package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacesedan/tickersense/internal/db"
	"github.com/spacesedan/tickersense/internal/models"
)

func TestHistoricalSentiment_WindowAndOrder(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t, true)

	for d := 0; d <= 10; d++ {
		_, err := store.UpsertSummary(ctx, NewSummary("AAPL", testDay.AddDate(0, 0, -d), d+1, 0, 0))
		require.NoError(t, err)
	}
	_, err := store.UpsertSummary(ctx, NewSummary("MSFT", testDay, 1, 0, 0))
	require.NoError(t, err)

	history, err := engine.HistoricalSentiment(ctx, "AAPL", 7)
	require.NoError(t, err)
	require.Len(t, history, 8)
	assert.True(t, history[0].Date.Equal(testDay))
	assert.True(t, history[7].Date.Equal(testDay.AddDate(0, 0, -7)))
	for i := 1; i < len(history); i++ {
		assert.True(t, history[i].Date.Before(history[i-1].Date))
		assert.Equal(t, "AAPL", history[i].Ticker)
	}
}

func TestHistoricalSentiment_UnknownTickerIsEmpty(t *testing.T) {
	engine, _ := newTestEngine(t, true)

	history, err := engine.HistoricalSentiment(context.Background(), "ZZZZ", 7)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestHistoricalSentiment_InvalidInput(t *testing.T) {
	engine, _ := newTestEngine(t, true)

	_, err := engine.HistoricalSentiment(context.Background(), "AAPL", -1)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = engine.HistoricalSentiment(context.Background(), " ", 7)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRecentMentions(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t, true)

	base := testNow.Add(-48 * time.Hour)
	for i := 0; i < 30; i++ {
		insert(t, store, "TSLA", models.SentimentNeutral, base.Add(time.Duration(i)*time.Hour))
	}
	insert(t, store, "AAPL", models.SentimentNeutral, testNow)

	mentions, err := engine.RecentMentions(ctx, "TSLA", 20)
	require.NoError(t, err)
	require.Len(t, mentions, 20)
	assert.True(t, mentions[0].CreatedAt.Equal(base.Add(29*time.Hour)))
	for i := 1; i < len(mentions); i++ {
		assert.False(t, mentions[i].CreatedAt.After(mentions[i-1].CreatedAt))
		assert.Equal(t, "TSLA", mentions[i].Ticker)
	}

	_, err = engine.RecentMentions(ctx, "TSLA", 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestStockDetail(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t, true)

	insert(t, store, "AAPL", models.SentimentPositive, testNow)
	insert(t, store, "AAPL", models.SentimentNegative, testNow.Add(-30*time.Hour))
	_, err := engine.Run(ctx, testDay)
	require.NoError(t, err)
	_, err = engine.Run(ctx, testDay.AddDate(0, 0, -1))
	require.NoError(t, err)

	detail, err := engine.StockDetail(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", detail.Ticker)
	assert.Equal(t, 1, detail.CurrentSentiment.MentionsCount)
	assert.Len(t, detail.HistoricalSentiment, 2)
	assert.Len(t, detail.RecentMentions, 2)
}

func TestStockDetail_NotFound(t *testing.T) {
	engine, _ := newTestEngine(t, true)

	_, err := engine.StockDetail(context.Background(), "NOPE")
	assert.ErrorIs(t, err, db.ErrNotFound)
}
