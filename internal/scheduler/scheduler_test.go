package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacesedan/tickersense/internal/aggregator"
	"github.com/spacesedan/tickersense/internal/db"
	"github.com/spacesedan/tickersense/internal/db/memory"
	"github.com/spacesedan/tickersense/internal/ingest"
	"github.com/spacesedan/tickersense/internal/models"
)

var testNow = time.Date(2025, 3, 14, 15, 30, 0, 0, time.UTC)

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]string
	acquired []string
	released []string
	err      error
}

func (l *fakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", false, l.err
	}
	if l.held == nil {
		l.held = map[string]string{}
	}
	if _, ok := l.held[key]; ok {
		return "", false, nil
	}
	l.held[key] = "token-" + key
	l.acquired = append(l.acquired, key)
	return l.held[key], true, nil
}

func (l *fakeLocker) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		l.released = append(l.released, key)
	}
	return nil
}

func newEngine(t *testing.T, store db.Store) *aggregator.Engine {
	t.Helper()
	return aggregator.NewEngine(store, aggregator.EngineConfig{
		Now: func() time.Time { return testNow },
	})
}

func seed(t *testing.T, store db.Store, ticker string, label models.SentimentLabel, at time.Time) {
	t.Helper()
	_, _, err := store.InsertMention(context.Background(), models.Mention{
		Ticker:         ticker,
		Text:           "$" + ticker,
		SentimentLabel: label,
		Source:         models.SourceReddit,
		CreatedAt:      at,
	})
	require.NoError(t, err)
}

func TestJobs_AggregateRunsTodayUnderLock(t *testing.T) {
	store := memory.New()
	seed(t, store, "AAPL", models.SentimentPositive, testNow.Add(-time.Hour))

	locker := &fakeLocker{}
	jobs := &Jobs{Engine: newEngine(t, store), Locker: locker, LockTTL: time.Minute}

	require.NoError(t, jobs.Aggregate(context.Background()))

	assert.Equal(t, []string{"lock:aggregate:2025-03-14"}, locker.acquired)
	assert.Equal(t, locker.acquired, locker.released)

	sum, err := store.FindSummary(context.Background(), "AAPL", aggregator.StartOfDay(testNow, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.MentionsCount)

	bullish, err := store.ListEntries(context.Background(), models.CategoryBullish, aggregator.StartOfDay(testNow, time.UTC), 10)
	require.NoError(t, err)
	require.Len(t, bullish, 1)
	assert.Equal(t, "AAPL", bullish[0].Ticker)
}

func TestJobs_FinalizeRunsYesterday(t *testing.T) {
	store := memory.New()
	yesterday := testNow.AddDate(0, 0, -1)
	seed(t, store, "TSLA", models.SentimentNegative, yesterday)

	locker := &fakeLocker{}
	jobs := &Jobs{Engine: newEngine(t, store), Locker: locker}

	require.NoError(t, jobs.Finalize(context.Background()))
	assert.Equal(t, []string{"lock:aggregate:2025-03-13"}, locker.acquired)

	_, err := store.FindSummary(context.Background(), "TSLA", aggregator.StartOfDay(yesterday, time.UTC))
	assert.NoError(t, err)
}

func TestJobs_SkipsWhenLockHeld(t *testing.T) {
	store := memory.New()
	seed(t, store, "AAPL", models.SentimentPositive, testNow)

	locker := &fakeLocker{held: map[string]string{"lock:aggregate:2025-03-14": "other"}}
	jobs := &Jobs{Engine: newEngine(t, store), Locker: locker}

	require.NoError(t, jobs.Aggregate(context.Background()))

	_, err := store.FindSummary(context.Background(), "AAPL", aggregator.StartOfDay(testNow, time.UTC))
	assert.ErrorIs(t, err, db.ErrNotFound)
	assert.Equal(t, "other", locker.held["lock:aggregate:2025-03-14"])
}

func TestJobs_LockErrorFailsRun(t *testing.T) {
	jobs := &Jobs{Engine: newEngine(t, memory.New()), Locker: &fakeLocker{err: errors.New("valkey down")}}
	assert.ErrorContains(t, jobs.Aggregate(context.Background()), "valkey down")
}

func TestJobs_WithoutLocker(t *testing.T) {
	store := memory.New()
	seed(t, store, "NVDA", models.SentimentPositive, testNow)
	jobs := &Jobs{Engine: newEngine(t, store)}

	require.NoError(t, jobs.Aggregate(context.Background()))
	_, err := store.FindSummary(context.Background(), "NVDA", aggregator.StartOfDay(testNow, time.UTC))
	assert.NoError(t, err)
}

func TestJobs_EngineErrorReleasesLock(t *testing.T) {
	store := memory.New()
	store.FailOn("FetchMentions", errors.New("db down"))
	locker := &fakeLocker{}
	jobs := &Jobs{Engine: newEngine(t, store), Locker: locker}

	require.ErrorContains(t, jobs.Aggregate(context.Background()), "db down")
	assert.Equal(t, locker.acquired, locker.released)
}

type staticSource struct{ items []models.RawContent }

func (staticSource) Name() string { return models.SourceNews }

func (s staticSource) Fetch(context.Context) ([]models.RawContent, error) { return s.items, nil }

type countingSink struct{ n atomic.Int32 }

func (s *countingSink) Deliver(context.Context, models.RawContent) (int, error) {
	s.n.Add(1)
	return 1, nil
}

func TestIngestJob(t *testing.T) {
	sink := &countingSink{}
	p := &ingest.Pipeline{
		Source: staticSource{items: []models.RawContent{
			{Source: models.SourceNews, SourceID: "u1", Text: "$AMD beats"},
			{Source: models.SourceNews, SourceID: "u2", Text: "nothing here"},
		}},
		Sink: sink,
	}

	require.NoError(t, Ingest(p, nil)(context.Background()))
	assert.Equal(t, int32(1), sink.n.Load())
}

func TestRunner_RejectsInvalidSpec(t *testing.T) {
	r := NewRunner(context.Background(), time.UTC, nil)
	_, err := r.Add("bad", "not a cron", func(context.Context) error { return nil })
	assert.Error(t, err)
}

func TestRunner_RunsJobsWithBaseContext(t *testing.T) {
	type key struct{}
	base := context.WithValue(context.Background(), key{}, "base")
	r := NewRunner(base, time.UTC, nil)

	var got atomic.Value
	_, err := r.Add("tick", "@every 10ms", func(ctx context.Context) error {
		got.Store(ctx.Value(key{}))
		return errors.New("keeps scheduling")
	})
	require.NoError(t, err)

	r.Start()
	defer r.Stop()

	assert.Eventually(t, func() bool { return got.Load() == "base" }, 3*time.Second, 5*time.Millisecond)
}
