package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacesedan/tickersense/internal/db"
	"github.com/spacesedan/tickersense/internal/db/memory"
	"github.com/spacesedan/tickersense/internal/models"
)

var now = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

type fixedClassifier struct {
	label models.SentimentLabel
	score float64
	calls int
}

func (c *fixedClassifier) Classify(string) (models.SentimentLabel, float64) {
	c.calls++
	return c.label, c.score
}

type staticSource struct {
	items []models.RawContent
	err   error
}

func (s staticSource) Name() string { return models.SourceReddit }

func (s staticSource) Fetch(context.Context) ([]models.RawContent, error) {
	return s.items, s.err
}

type mapDeduper struct {
	seen map[string]bool
}

func (d *mapDeduper) IsProcessed(_ context.Context, source, id string) (bool, error) {
	return d.seen[source+":"+id], nil
}

func (d *mapDeduper) MarkProcessed(_ context.Context, source, id string, _ time.Duration) error {
	d.seen[source+":"+id] = true
	return nil
}

type recordingPublisher struct {
	published []models.RawContent
	failOn    string
}

func (p *recordingPublisher) Publish(_ context.Context, raw models.RawContent) error {
	if raw.SourceID == p.failOn {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, raw)
	return nil
}

func raw(id, text string) models.RawContent {
	return models.RawContent{
		ContentID: ContentID(models.SourceReddit, id),
		Source:    models.SourceReddit,
		SourceID:  id,
		Text:      text,
		Metadata:  models.ContentMetadata{Timestamp: now.Add(-time.Hour)},
	}
}

func TestNormalize_OneMentionPerTicker(t *testing.T) {
	c := &fixedClassifier{label: models.SentimentPositive, score: 0.8}

	mentions := Normalize(raw("p1", "$TSLA and $aapl to the moon, $TSLA again"), c, now)

	require.Len(t, mentions, 2)
	assert.Equal(t, 1, c.calls, "classification runs once per item")
	assert.Equal(t, "AAPL", mentions[0].Ticker)
	assert.Equal(t, "TSLA", mentions[1].Ticker)
	for _, m := range mentions {
		assert.Equal(t, models.SentimentPositive, m.SentimentLabel)
		assert.Equal(t, 0.8, m.SentimentScore)
		assert.Equal(t, models.SourceReddit, m.Source)
		require.NotNil(t, m.SourceID)
		assert.Equal(t, "p1", *m.SourceID)
		assert.True(t, m.CreatedAt.Equal(now.Add(-time.Hour)))
		assert.True(t, m.ProcessedAt.Equal(now))
	}
}

func TestNormalize_NothingToExtract(t *testing.T) {
	c := &fixedClassifier{label: models.SentimentNeutral}

	assert.Empty(t, Normalize(raw("p1", "   "), c, now))
	assert.Empty(t, Normalize(raw("p2", "no cashtags at all"), c, now))
	assert.Zero(t, c.calls)
}

func TestNormalize_DefaultsTimestamp(t *testing.T) {
	r := raw("p1", "$NVDA")
	r.Metadata.Timestamp = time.Time{}

	mentions := Normalize(r, &fixedClassifier{label: models.SentimentNeutral}, now)
	require.Len(t, mentions, 1)
	assert.True(t, mentions[0].CreatedAt.Equal(now))
}

func TestValidateMention(t *testing.T) {
	m, err := ValidateMention(models.Mention{Ticker: " aapl ", SentimentLabel: "Positive", SentimentScore: 0.4, Source: "feed"})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", m.Ticker)
	assert.Equal(t, models.SentimentPositive, m.SentimentLabel)

	bad := []models.Mention{
		{Ticker: "", SentimentLabel: "positive", Source: "feed"},
		{Ticker: "AAPL", SentimentLabel: "bullish", Source: "feed"},
		{Ticker: "AAPL", SentimentLabel: "neutral", SentimentScore: 1.5, Source: "feed"},
		{Ticker: "AAPL", SentimentLabel: "neutral"},
	}
	for _, b := range bad {
		_, err := ValidateMention(b)
		assert.ErrorIs(t, err, ErrInvalidMention)
	}
}

func TestPipeline_PublishesNewItemsOnce(t *testing.T) {
	pub := &recordingPublisher{}
	dedup := &mapDeduper{seen: map[string]bool{"reddit:old": true}}

	p := &Pipeline{
		Source: staticSource{items: []models.RawContent{
			raw("a", "$AAPL looks great"),
			raw("b", "nothing to see"),
			raw("old", "$TSLA seen already"),
			raw("c", "$MSFT earnings"),
		}},
		Sink:     PublishSink{Publisher: pub},
		Dedup:    dedup,
		DedupTTL: time.Hour,
	}

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, IngestResult{Found: 4, Saved: 2, Skipped: 2}, res)
	require.Len(t, pub.published, 2)
	assert.True(t, dedup.seen["reddit:a"])
	assert.True(t, dedup.seen["reddit:c"])

	res, err = p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Saved)
	assert.Equal(t, 4, res.Skipped)
}

func TestPipeline_DeliveryFailureIsSkippedAndRetriedLater(t *testing.T) {
	pub := &recordingPublisher{failOn: "a"}
	dedup := &mapDeduper{seen: map[string]bool{}}
	p := &Pipeline{
		Source: staticSource{items: []models.RawContent{raw("a", "$AAPL"), raw("b", "$AMD")}},
		Sink:   PublishSink{Publisher: pub},
		Dedup:  dedup,
	}

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Saved)
	assert.Equal(t, 1, res.Skipped)
	assert.False(t, dedup.seen["reddit:a"], "failed items stay eligible")
}

func TestPipeline_FetchError(t *testing.T) {
	p := &Pipeline{Source: staticSource{err: errors.New("oauth failed")}, Sink: PublishSink{Publisher: &recordingPublisher{}}}

	_, err := p.Run(context.Background())
	assert.Error(t, err)
}

func TestStoreSink_InsertsMentions(t *testing.T) {
	store := memory.New()
	sink := StoreSink{
		Store:      store,
		Classifier: &fixedClassifier{label: models.SentimentNegative, score: -0.6},
		Now:        func() time.Time { return now },
	}
	p := &Pipeline{
		Source: staticSource{items: []models.RawContent{raw("a", "$GME $AMC dumping")}},
		Sink:   sink,
	}

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Saved)

	mentions, err := store.FetchMentions(context.Background(), db.MentionQuery{})
	require.NoError(t, err)
	require.Len(t, mentions, 2)
	for _, m := range mentions {
		assert.Equal(t, models.SentimentNegative, m.SentimentLabel)
	}
}

func TestStoreSink_AllInsertsFail(t *testing.T) {
	store := memory.New()
	store.FailOn("InsertMention", errors.New("disk full"))
	sink := StoreSink{Store: store, Classifier: &fixedClassifier{label: models.SentimentNeutral}}

	n, err := sink.Deliver(context.Background(), raw("a", "$SPY"))
	assert.Error(t, err)
	assert.Zero(t, n)
}

func TestStoreSink_RedeliveryCountsOnlyNewMentions(t *testing.T) {
	store := memory.New()
	at := now
	sink := StoreSink{
		Store:      store,
		Classifier: &fixedClassifier{label: models.SentimentPositive, score: 0.5},
		Now:        func() time.Time { return at },
	}

	n, err := sink.Deliver(context.Background(), raw("a", "$NVDA $AMD rally"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	at = now.Add(time.Hour)
	n, err = sink.Deliver(context.Background(), raw("a", "$NVDA $AMD rally"))
	require.NoError(t, err)
	assert.Zero(t, n)

	mentions, err := store.FetchMentions(context.Background(), db.MentionQuery{})
	require.NoError(t, err)
	assert.Len(t, mentions, 2)
}
