// Package memory is an in-process Store used by tests and by
// STORE_BACKEND=memory for local runs.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spacesedan/tickersense/internal/db"
	"github.com/spacesedan/tickersense/internal/models"
)

var _ db.Store = (*Store)(nil)

type summaryKey struct {
	ticker string
	date   int64
}

type entryKey struct {
	ticker   string
	category models.TrendingCategory
	date     int64
}

type state struct {
	mentions  []models.Mention
	summaries map[summaryKey]models.DailySummary
	entries   map[entryKey]models.TrendingEntry
}

func newState() *state {
	return &state{
		summaries: make(map[summaryKey]models.DailySummary),
		entries:   make(map[entryKey]models.TrendingEntry),
	}
}

func (s *state) clone() *state {
	c := &state{
		mentions:  slices.Clone(s.mentions),
		summaries: make(map[summaryKey]models.DailySummary, len(s.summaries)),
		entries:   make(map[entryKey]models.TrendingEntry, len(s.entries)),
	}
	for k, v := range s.summaries {
		c.summaries[k] = v
	}
	for k, v := range s.entries {
		c.entries[k] = v
	}
	return c
}

type Store struct {
	mu    *sync.RWMutex
	st    *state
	now   func() time.Time
	inTx  bool
	fails map[string]error
}

func New() *Store {
	return &Store{
		mu:  &sync.RWMutex{},
		st:  newState(),
		now: time.Now,
	}
}

// FailOn makes every later call of the named operation return err. Tests use
// it to simulate storage outages.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails == nil {
		s.fails = make(map[string]error)
	}
	s.fails[op] = err
}

func (s *Store) failure(op string) error {
	if s.fails == nil {
		return nil
	}
	return s.fails[op]
}

// lock and unlock are no-ops inside a transaction view, which already holds
// the write lock of its parent.
func (s *Store) lock() {
	if !s.inTx {
		s.mu.Lock()
	}
}

func (s *Store) unlock() {
	if !s.inTx {
		s.mu.Unlock()
	}
}

func (s *Store) rlock() {
	if !s.inTx {
		s.mu.RLock()
	}
}

func (s *Store) runlock() {
	if !s.inTx {
		s.mu.RUnlock()
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() {}

func (s *Store) WithTx(ctx context.Context, fn func(tx db.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{
		mu:    s.mu,
		st:    s.st.clone(),
		now:   s.now,
		inTx:  true,
		fails: s.fails,
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

func (s *Store) FetchMentions(ctx context.Context, q db.MentionQuery) ([]models.Mention, error) {
	s.rlock()
	defer s.runlock()
	if err := s.failure("FetchMentions"); err != nil {
		return nil, err
	}

	var out []models.Mention
	for _, m := range s.st.mentions {
		if q.Ticker != "" && m.Ticker != q.Ticker {
			continue
		}
		if !q.Start.IsZero() && m.CreatedAt.Before(q.Start) {
			continue
		}
		if !q.End.IsZero() && !m.CreatedAt.Before(q.End) {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) InsertMention(ctx context.Context, m models.Mention) (models.Mention, bool, error) {
	s.lock()
	defer s.unlock()
	if err := s.failure("InsertMention"); err != nil {
		return models.Mention{}, false, err
	}

	now := s.now()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	for _, existing := range s.st.mentions {
		if existing.ID == m.ID {
			return existing, false, nil
		}
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.ProcessedAt.IsZero() {
		m.ProcessedAt = now
	}
	s.st.mentions = append(s.st.mentions, m)
	return m, true, nil
}

func (s *Store) FindSummary(ctx context.Context, ticker string, date time.Time) (models.DailySummary, error) {
	s.rlock()
	defer s.runlock()
	if err := s.failure("FindSummary"); err != nil {
		return models.DailySummary{}, err
	}

	sum, ok := s.st.summaries[summaryKey{ticker, date.UnixNano()}]
	if !ok {
		return models.DailySummary{}, db.ErrNotFound
	}
	return sum, nil
}

func (s *Store) UpsertSummary(ctx context.Context, sum models.DailySummary) (models.DailySummary, error) {
	s.lock()
	defer s.unlock()
	if err := s.failure("UpsertSummary"); err != nil {
		return models.DailySummary{}, err
	}

	key := summaryKey{sum.Ticker, sum.Date.UnixNano()}
	now := s.now()
	if existing, ok := s.st.summaries[key]; ok {
		sum.ID = existing.ID
		sum.CreatedAt = existing.CreatedAt
	} else {
		sum.ID = uuid.NewString()
		sum.CreatedAt = now
	}
	sum.UpdatedAt = now
	s.st.summaries[key] = sum
	return sum, nil
}

func (s *Store) ListSummariesByDate(ctx context.Context, date time.Time, minMentions int) ([]models.DailySummary, error) {
	s.rlock()
	defer s.runlock()
	if err := s.failure("ListSummariesByDate"); err != nil {
		return nil, err
	}

	var out []models.DailySummary
	for _, sum := range s.st.summaries {
		if sum.Date.Equal(date) && sum.MentionsCount >= minMentions {
			out = append(out, sum)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out, nil
}

func (s *Store) ListSummariesByTicker(ctx context.Context, ticker string, from, to time.Time) ([]models.DailySummary, error) {
	s.rlock()
	defer s.runlock()
	if err := s.failure("ListSummariesByTicker"); err != nil {
		return nil, err
	}

	var out []models.DailySummary
	for _, sum := range s.st.summaries {
		if sum.Ticker != ticker || sum.Date.Before(from) || sum.Date.After(to) {
			continue
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (s *Store) FindEntry(ctx context.Context, ticker string, category models.TrendingCategory, date time.Time) (models.TrendingEntry, error) {
	s.rlock()
	defer s.runlock()
	if err := s.failure("FindEntry"); err != nil {
		return models.TrendingEntry{}, err
	}

	e, ok := s.st.entries[entryKey{ticker, category, date.UnixNano()}]
	if !ok {
		return models.TrendingEntry{}, db.ErrNotFound
	}
	return e, nil
}

func (s *Store) UpsertEntry(ctx context.Context, e models.TrendingEntry) (models.TrendingEntry, error) {
	s.lock()
	defer s.unlock()
	if err := s.failure("UpsertEntry"); err != nil {
		return models.TrendingEntry{}, err
	}

	key := entryKey{e.Ticker, e.Category, e.Date.UnixNano()}
	now := s.now()
	if existing, ok := s.st.entries[key]; ok {
		e.ID = existing.ID
		e.CreatedAt = existing.CreatedAt
	} else {
		e.ID = uuid.NewString()
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	s.st.entries[key] = e
	return e, nil
}

func (s *Store) ListEntries(ctx context.Context, category models.TrendingCategory, date time.Time, limit int) ([]models.TrendingEntry, error) {
	s.rlock()
	defer s.runlock()
	if err := s.failure("ListEntries"); err != nil {
		return nil, err
	}

	var out []models.TrendingEntry
	for _, e := range s.st.entries {
		if e.Category == category && e.Date.Equal(date) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return strings.Compare(out[i].Ticker, out[j].Ticker) < 0
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) DeleteEntriesExcept(ctx context.Context, category models.TrendingCategory, date time.Time, keep []string) (int, error) {
	s.lock()
	defer s.unlock()
	if err := s.failure("DeleteEntriesExcept"); err != nil {
		return 0, err
	}

	deleted := 0
	for k := range s.st.entries {
		if k.category != category || k.date != date.UnixNano() || slices.Contains(keep, k.ticker) {
			continue
		}
		delete(s.st.entries, k)
		deleted++
	}
	return deleted, nil
}
