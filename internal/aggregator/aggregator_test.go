package aggregator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilgisen/newsauto/internal/cache"
	"github.com/bilgisen/newsauto/internal/feed"
	"github.com/bilgisen/newsauto/internal/models"
	"github.com/bilgisen/newsauto/internal/storage"
)

var testNow = time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)

type fakeAdapter struct {
	items    []models.RawItem
	err      error
	panicMsg string
	onParse  func()
	calls    int
	mu       sync.Mutex
}

func (f *fakeAdapter) FetchRaw(ctx context.Context, src models.ContentSource) ([]models.RawItem, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.items, f.err
}

func (f *fakeAdapter) ParseItem(src models.ContentSource, raw models.RawItem) (*models.ParsedItem, error) {
	if f.onParse != nil {
		f.onParse()
	}
	if msg, ok := raw["error"].(string); ok {
		return nil, errors.New(msg)
	}
	if skip, _ := raw["skip"].(bool); skip {
		return nil, nil
	}
	title, _ := raw["title"].(string)
	url, _ := raw["url"].(string)
	content, _ := raw["content"].(string)
	return &models.ParsedItem{Title: title, URL: url, Content: content}, nil
}

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func rawItem(title, url string) models.RawItem {
	return models.RawItem{"title": title, "url": url}
}

type fixture struct {
	store    *storage.Store
	registry *feed.Registry
	cache    *cache.MemoryCache
	agg      *Aggregator
}

func newFixture(t *testing.T, summarizer Summarizer) *fixture {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "agg.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{store: store, registry: feed.NewRegistry(), cache: cache.NewMemoryCache()}
	f.agg = New(store, f.registry, f.cache, summarizer, zerolog.Nop(), Options{
		MaxConcurrency: 2,
		SourceTimeout:  5 * time.Second,
		Now:            func() time.Time { return testNow },
	})
	return f
}

func (f *fixture) addSource(t *testing.T, name string, typ models.SourceType, cfg map[string]any) models.ContentSource {
	t.Helper()
	src := models.ContentSource{Name: name, Type: typ, Active: true, FetchFrequencyMinutes: 60, Config: cfg}
	_, err := f.store.UpsertSource(context.Background(), &src)
	require.NoError(t, err)
	return src
}

func TestFetchAllIsolatesFailingSource(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	f.registry.Register(models.SourceRSS, &fakeAdapter{items: []models.RawItem{
		rawItem("Post one", "https://good.dev/1"),
		rawItem("Another story", "https://good.dev/2"),
	}})
	f.registry.Register(models.SourceReddit, &fakeAdapter{err: errors.New("connection refused")})

	good := f.addSource(t, "good", models.SourceRSS, nil)
	bad := f.addSource(t, "bad", models.SourceReddit, nil)

	res, err := f.agg.FetchAll(ctx, Filter{})
	require.NoError(t, err)

	assert.Equal(t, 2, res.SourcesAttempted)
	assert.Equal(t, 2, res.ItemsAdded)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "bad", res.Errors[0].Source)
	assert.Contains(t, res.Errors[0].Message, "connection refused")
	assert.Equal(t, 2, res.PerSource["good"].Added)

	gotGood, err := f.store.GetSource(ctx, good.ID)
	require.NoError(t, err)
	require.NotNil(t, gotGood.LastFetched)
	assert.True(t, testNow.Equal(*gotGood.LastFetched))
	assert.Equal(t, 0, gotGood.ErrorCount)

	gotBad, err := f.store.GetSource(ctx, bad.ID)
	require.NoError(t, err)
	assert.Nil(t, gotBad.LastFetched)
	assert.Equal(t, 1, gotBad.ErrorCount)
}

func TestFetchAllReportsInterruptedSource(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t, nil)

	f.registry.Register(models.SourceRSS, &fakeAdapter{
		items: []models.RawItem{
			rawItem("First post", "https://slow.dev/1"),
			rawItem("Second post", "https://slow.dev/2"),
			rawItem("Third post", "https://slow.dev/3"),
		},
		onParse: cancel,
	})
	src := f.addSource(t, "slow", models.SourceRSS, nil)

	res, err := f.agg.FetchAll(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "slow", res.Errors[0].Source)
	assert.Contains(t, res.Errors[0].Message, context.Canceled.Error())

	got, err := f.store.GetSource(context.Background(), src.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LastFetched)
}

func TestFetchAllUnsupportedAndPanickingSources(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	f.registry.Register(models.SourceRSS, &fakeAdapter{items: []models.RawItem{rawItem("ok", "https://ok.dev/1")}})
	f.registry.Register(models.SourceGitHub, &fakeAdapter{panicMsg: "boom"})

	f.addSource(t, "ok", models.SourceRSS, nil)
	f.addSource(t, "mystery", "twitter", nil)
	f.addSource(t, "crashy", models.SourceGitHub, nil)

	res, err := f.agg.FetchAll(ctx, Filter{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.ItemsAdded)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "crashy", res.Errors[0].Source)
	assert.Contains(t, res.Errors[0].Message, "boom")
	assert.Equal(t, "mystery", res.Errors[1].Source)
	assert.Contains(t, res.Errors[1].Message, feed.ErrUnsupportedSourceType.Error())
}

func TestFetchAllItemHandling(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	f.registry.Register(models.SourceRSS, &fakeAdapter{items: []models.RawItem{
		rawItem("Keeper", "https://e.dev/keep"),
		rawItem("", "https://e.dev/untitled"),
		rawItem("No url", ""),
		rawItem("Bad url", "not a url"),
		rawItem("Keeper again", "https://e.dev/keep"),
		rawItem("Sponsored: buy", "https://e.dev/ad"),
		{"error": "malformed entry"},
		{"skip": true},
		rawItem("  Go generics deep dive  ", "https://e.dev/go"),
	}})

	src := f.addSource(t, "feed", models.SourceRSS, map[string]any{
		"exclude_keywords": []any{"sponsored"},
		"keywords":         []any{"generics"},
	})

	res, err := f.agg.FetchAll(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, res.Errors)

	stats := res.PerSource["feed"]
	assert.Equal(t, 9, stats.Fetched)
	assert.Equal(t, 2, stats.Added)
	assert.Equal(t, 3, stats.Invalid)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 1, stats.Excluded)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Failures)

	got, err := f.store.GetSource(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ErrorCount)

	items, err := f.store.RecentContent(ctx, storage.RecentQuery{Since: testNow.Add(-time.Hour)})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Go generics deep dive", items[0].Title)
	assert.Equal(t, 45.0, items[0].RelevanceScore)
	assert.NotEmpty(t, items[0].ContentHash)
}

func TestFetchAllCadenceAndForce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	adapter := &fakeAdapter{items: []models.RawItem{rawItem("a", "https://e.dev/a")}}
	f.registry.Register(models.SourceRSS, adapter)

	src := f.addSource(t, "feed", models.SourceRSS, nil)
	require.NoError(t, f.store.UpdateSourceFetchState(ctx, src.ID, testNow.Add(-10*time.Minute), 0))

	res, err := f.agg.FetchAll(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.SourcesAttempted)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 0, adapter.callCount())

	res, err = f.agg.FetchAll(ctx, Filter{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.SourcesAttempted)
	assert.Equal(t, 1, res.ItemsAdded)
}

func TestFetchAllSkipsUnhealthySourcesEvenWhenForced(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	adapter := &fakeAdapter{}
	f.registry.Register(models.SourceRSS, adapter)

	src := f.addSource(t, "feed", models.SourceRSS, nil)
	for i := 0; i < models.MaxSourceErrors; i++ {
		require.NoError(t, f.store.RecordSourceFailure(ctx, src.ID))
	}

	res, err := f.agg.FetchAll(ctx, Filter{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 0, res.SourcesAttempted)
	assert.Equal(t, 0, adapter.callCount())
}

func TestFetchAllRejectsPersistedURLs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.registry.Register(models.SourceRSS, &fakeAdapter{items: []models.RawItem{
		rawItem("a", "https://e.dev/a"),
		rawItem("b", "https://e.dev/b"),
	}})
	f.addSource(t, "feed", models.SourceRSS, nil)

	res, err := f.agg.FetchAll(ctx, Filter{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.ItemsAdded)

	// cache hit
	res, err = f.agg.FetchAll(ctx, Filter{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ItemsAdded)
	assert.Equal(t, 2, res.PerSource["feed"].Duplicates)

	// store hit with a cold cache
	require.NoError(t, f.cache.ClearProcessed(ctx))
	res, err = f.agg.FetchAll(ctx, Filter{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ItemsAdded)
	assert.Equal(t, 2, res.PerSource["feed"].Duplicates)

	n, err := f.store.CountItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFetchAllFilters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.registry.Register(models.SourceRSS, &fakeAdapter{})

	a := f.addSource(t, "a", models.SourceRSS, nil)
	f.addSource(t, "b", models.SourceRSS, nil)

	res, err := f.agg.FetchAll(ctx, Filter{SourceIDs: []int64{a.ID}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.SourcesAttempted)
	_, ok := res.PerSource["a"]
	assert.True(t, ok)

	nl := int64(42)
	res, err = f.agg.FetchAll(ctx, Filter{NewsletterID: &nl, Force: true})
	require.NoError(t, err)
	assert.Equal(t, 0, res.SourcesAttempted)
}

type fakeSummarizer struct {
	mu       sync.Mutex
	batches  [][]models.SummaryRequest
	failWith error
	skipIDs  map[int64]bool
}

func (s *fakeSummarizer) BatchSummarize(ctx context.Context, reqs []models.SummaryRequest) ([]models.SummaryResult, error) {
	s.mu.Lock()
	s.batches = append(s.batches, reqs)
	s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	out := make([]models.SummaryResult, 0, len(reqs))
	for _, r := range reqs {
		if s.skipIDs[r.ID] {
			out = append(out, models.SummaryResult{ID: r.ID})
			continue
		}
		out = append(out, models.SummaryResult{
			ID:        r.ID,
			Summary:   "Summary of " + r.Title,
			KeyPoints: []string{"point"},
			ModelUsed: "test-model",
		})
	}
	return out, nil
}

func TestProcessPending(t *testing.T) {
	ctx := context.Background()
	sum := &fakeSummarizer{skipIDs: map[int64]bool{3: true}}
	f := newFixture(t, sum)

	var raws []models.RawItem
	for i := 1; i <= 7; i++ {
		raws = append(raws, rawItem(fmt.Sprintf("Story %d", i), fmt.Sprintf("https://e.dev/%d", i)))
	}
	f.registry.Register(models.SourceRSS, &fakeAdapter{items: raws})
	f.addSource(t, "feed", models.SourceRSS, nil)

	_, err := f.agg.FetchAll(ctx, Filter{})
	require.NoError(t, err)

	res, err := f.agg.ProcessPending(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Selected)
	assert.Equal(t, 6, res.Summarized)
	assert.Equal(t, 1, res.Failed)

	require.Len(t, sum.batches, 2)
	assert.Len(t, sum.batches[0], 5)
	assert.Len(t, sum.batches[1], 2)

	item, err := f.store.GetItem(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, item.Summary)
	assert.Equal(t, "Summary of Story 1", *item.Summary)
	assert.Equal(t, "test-model", item.LLMModel)
	require.NotNil(t, item.ProcessedAt)
	assert.True(t, testNow.Equal(*item.ProcessedAt))

	// only the skipped item is still pending
	pending, err := f.store.ListUnprocessed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.EqualValues(t, 3, pending[0].ID)
}

func TestProcessPendingBatchFailure(t *testing.T) {
	ctx := context.Background()
	sum := &fakeSummarizer{failWith: errors.New("model offline")}
	f := newFixture(t, sum)
	f.registry.Register(models.SourceRSS, &fakeAdapter{items: []models.RawItem{rawItem("a", "https://e.dev/a")}})
	f.addSource(t, "feed", models.SourceRSS, nil)
	_, err := f.agg.FetchAll(ctx, Filter{})
	require.NoError(t, err)

	res, err := f.agg.ProcessPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 0, res.Summarized)
}

func TestProcessPendingWithoutSummarizer(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.agg.ProcessPending(context.Background(), 10)
	assert.Error(t, err)
}

func TestCandidates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.registry.Register(models.SourceRSS, &fakeAdapter{items: []models.RawItem{
		rawItem("Go 1.22 released", "https://a.dev/go"),
		{"title": "Go 1.22 is released", "url": "https://b.dev/go", "content": "generics"},
		rawItem("Unrelated news", "https://c.dev/x"),
	}})
	f.addSource(t, "feed", models.SourceRSS, map[string]any{"keywords": []any{"generics"}})

	_, err := f.agg.FetchAll(ctx, Filter{})
	require.NoError(t, err)

	got, err := f.agg.Candidates(ctx, Query{Hours: 24})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "https://b.dev/go", got[0].URL)
	assert.Equal(t, "Unrelated news", got[1].Title)

	limited, err := f.agg.Candidates(ctx, Query{Hours: 24, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := f.agg.Candidates(ctx, Query{Hours: 24, MinScore: 99})
	require.NoError(t, err)
	assert.Empty(t, none)
}
