package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilgisen/newsauto/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedSource(t *testing.T, s *Store, name string, newsletter *int64) models.ContentSource {
	t.Helper()
	src := models.ContentSource{
		Name:                  name,
		Type:                  models.SourceRSS,
		URL:                   "https://example.com/feed",
		Config:                map[string]any{"keywords": []string{"go"}},
		Active:                true,
		FetchFrequencyMinutes: 30,
		NewsletterID:          newsletter,
	}
	_, err := s.UpsertSource(context.Background(), &src)
	require.NoError(t, err)
	return src
}

func TestUpsertSourcePreservesFetchState(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	src := seedSource(t, s, "feed", nil)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpdateSourceFetchState(ctx, src.ID, now, 2))

	src.FetchFrequencyMinutes = 90
	id, err := s.UpsertSource(ctx, &src)
	require.NoError(t, err)
	assert.Equal(t, src.ID, id)

	got, err := s.GetSource(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 90, got.FetchFrequencyMinutes)
	assert.Equal(t, 2, got.ErrorCount)
	require.NotNil(t, got.LastFetched)
	assert.True(t, now.Equal(*got.LastFetched))
	assert.Equal(t, []string{"go"}, got.ConfigStrings("keywords"))
}

func TestRecordSourceFailure(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	src := seedSource(t, s, "feed", nil)

	require.NoError(t, s.RecordSourceFailure(ctx, src.ID))
	require.NoError(t, s.RecordSourceFailure(ctx, src.ID))

	got, err := s.GetSource(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ErrorCount)
	assert.Nil(t, got.LastFetched)

	assert.ErrorIs(t, s.RecordSourceFailure(ctx, 999), ErrNotFound)
}

func TestListSourcesFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	nl := int64(3)

	a := seedSource(t, s, "a", &nl)
	b := seedSource(t, s, "b", nil)
	for i := 0; i < models.MaxSourceErrors; i++ {
		require.NoError(t, s.RecordSourceFailure(ctx, b.ID))
	}

	all, err := s.ListSources(ctx, SourceFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byNewsletter, err := s.ListSources(ctx, SourceFilter{NewsletterID: &nl})
	require.NoError(t, err)
	require.Len(t, byNewsletter, 1)
	assert.Equal(t, a.ID, byNewsletter[0].ID)

	active, err := s.ListSources(ctx, SourceFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "a", active[0].Name)

	byID, err := s.ListSources(ctx, SourceFilter{IDs: []int64{b.ID}})
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, "b", byID[0].Name)
}

func TestInsertItemDuplicateURL(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	src := seedSource(t, s, "feed", nil)

	item := &models.ContentItem{
		SourceID:       src.ID,
		URL:            "https://example.com/a",
		Title:          "A",
		ContentHash:    "h",
		RelevanceScore: 55,
		FetchedAt:      time.Now(),
	}
	id, err := s.InsertItem(ctx, item)
	require.NoError(t, err)
	assert.NotZero(t, id)

	exists, err := s.URLExists(ctx, item.URL)
	require.NoError(t, err)
	assert.True(t, exists)

	dup := *item
	_, err = s.InsertItem(ctx, &dup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicate))

	n, err := s.CountItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestListUnprocessedUsesNullPredicate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	src := seedSource(t, s, "feed", nil)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, url := range []string{"https://e.com/1", "https://e.com/2", "https://e.com/3"} {
		_, err := s.InsertItem(ctx, &models.ContentItem{
			SourceID: src.ID, URL: url, Title: url, ContentHash: url,
			FetchedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	pending, err := s.ListUnprocessed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, "https://e.com/1", pending[0].URL)

	score := 88.0
	require.NoError(t, s.ApplySummary(ctx, pending[1].ID, SummaryUpdate{
		Summary:     "short summary",
		KeyPoints:   []string{"one", "two"},
		Model:       "llama3.2",
		Score:       &score,
		ProcessedAt: base.Add(time.Hour),
	}))

	pending, err = s.ListUnprocessed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	for _, p := range pending {
		assert.NotEqual(t, "https://e.com/2", p.URL)
	}

	limited, err := s.ListUnprocessed(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	got, err := s.GetItem(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, got.Summary)
	assert.Equal(t, "short summary", *got.Summary)
	assert.Equal(t, []string{"one", "two"}, got.KeyPoints)
	assert.Equal(t, 88.0, got.RelevanceScore)
	assert.Equal(t, "llama3.2", got.LLMModel)
	require.NotNil(t, got.ProcessedAt)
}

func TestRecentContentAndAuditEligible(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	nl := int64(1)
	a := seedSource(t, s, "a", &nl)
	b := seedSource(t, s, "b", nil)
	now := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	summary := "summary"

	items := []models.ContentItem{
		{SourceID: a.ID, URL: "https://e.com/old", Title: "old", RelevanceScore: 90, FetchedAt: now.Add(-72 * time.Hour), Summary: &summary},
		{SourceID: a.ID, URL: "https://e.com/low", Title: "low", RelevanceScore: 20, FetchedAt: now.Add(-time.Hour)},
		{SourceID: a.ID, URL: "https://e.com/high", Title: "high", RelevanceScore: 80, FetchedAt: now.Add(-2 * time.Hour), Summary: &summary},
		{SourceID: b.ID, URL: "https://e.com/other", Title: "other", RelevanceScore: 70, FetchedAt: now.Add(-time.Hour)},
	}
	for i := range items {
		items[i].ContentHash = items[i].URL
		_, err := s.InsertItem(ctx, &items[i])
		require.NoError(t, err)
	}

	recent, err := s.RecentContent(ctx, RecentQuery{Since: now.Add(-24 * time.Hour), MinScore: 50})
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "high", recent[0].Title)
	assert.Equal(t, "other", recent[1].Title)

	scoped, err := s.RecentContent(ctx, RecentQuery{Since: now.Add(-24 * time.Hour), NewsletterID: &nl})
	require.NoError(t, err)
	require.Len(t, scoped, 2)
	assert.Equal(t, "high", scoped[0].Title)
	assert.Equal(t, "low", scoped[1].Title)

	eligible, err := s.ListAuditEligible(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, "high", eligible[0].Title)
}

func TestSaveQuality(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	src := seedSource(t, s, "feed", nil)

	item := &models.ContentItem{SourceID: src.ID, URL: "https://e.com/q", Title: "q", ContentHash: "q", FetchedAt: time.Now()}
	_, err := s.InsertItem(ctx, item)
	require.NoError(t, err)

	fresh, err := s.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Nil(t, fresh.Quality)

	h, f, sent := 0.7, 0.9, -0.4
	checked := time.Date(2024, 5, 3, 8, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveQuality(ctx, item.ID, models.QualityFields{
		QualityScore:       0.72,
		HallucinationScore: &h,
		FactualScore:       &f,
		SentimentScore:     &sent,
		ConfidenceScore:    2.0 / 3.0,
		NeedsReview:        true,
		Flags:              []string{"HIGH_HALLUCINATION_RISK", "NEGATIVE_SENTIMENT"},
		CheckedAt:          checked,
	}))

	got, err := s.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Quality)
	assert.InDelta(t, 0.72, got.Quality.QualityScore, 1e-9)
	assert.True(t, got.Quality.NeedsReview)
	assert.Equal(t, []string{"HIGH_HALLUCINATION_RISK", "NEGATIVE_SENTIMENT"}, got.Quality.Flags)
	require.NotNil(t, got.Quality.SentimentScore)
	assert.InDelta(t, -0.4, *got.Quality.SentimentScore, 1e-9)
	assert.True(t, checked.Equal(got.Quality.CheckedAt))

	_, err = s.GetItem(ctx, 12345)
	assert.ErrorIs(t, err, ErrNotFound)
}
