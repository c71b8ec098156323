package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilgisen/newsauto/internal/cache"
	"github.com/bilgisen/newsauto/internal/logger"
	"github.com/bilgisen/newsauto/internal/models"
)

type fakeLLM struct {
	calls     atomic.Int32
	mu        sync.Mutex
	failTitle map[string]bool
}

func (f *fakeLLM) Model() string { return "fake-model" }

func (f *fakeLLM) Summarize(ctx context.Context, title, content string) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	fail := f.failTitle[title]
	f.mu.Unlock()
	if fail {
		return "", errors.New("model unavailable")
	}
	return "Summary: Summary of " + title + " for readers.", nil
}

func (f *fakeLLM) KeyPoints(ctx context.Context, content string, maxPoints int) ([]string, error) {
	return []string{"point one", "Point One", "point two"}, nil
}

func TestBatchSummarize(t *testing.T) {
	llm := &fakeLLM{failTitle: map[string]bool{"broken": true, "empty": true}}
	s := NewSummarizer(llm, cache.NewMemoryCache(), logger.Nop(), SummarizerOptions{Workers: 2})

	reqs := []models.SummaryRequest{
		{ID: 1, Title: "alpha", Content: "Alpha body."},
		{ID: 2, Title: "broken", Content: "First sentence. Second one! Third? Fourth sentence."},
		{ID: 3, Title: "empty", Content: ""},
		{ID: 4, Title: "delta", Content: "Delta body."},
	}
	got, err := s.BatchSummarize(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, got, 4)

	for i, r := range got {
		assert.Equal(t, reqs[i].ID, r.ID, "results follow request order")
	}

	assert.Equal(t, "Summary of alpha for readers.", got[0].Summary)
	assert.Equal(t, "fake-model", got[0].ModelUsed)
	assert.Equal(t, []string{"point one", "point two"}, got[0].KeyPoints)

	assert.Equal(t, "First sentence. Second one! Third?", got[1].Summary)
	assert.Equal(t, ExtractiveModel, got[1].ModelUsed)
	assert.Empty(t, got[1].KeyPoints)

	assert.Empty(t, got[2].Summary)
	assert.Empty(t, got[2].ModelUsed)
}

func TestBatchSummarizeUsesCache(t *testing.T) {
	llm := &fakeLLM{}
	c := cache.NewMemoryCache()
	s := NewSummarizer(llm, c, logger.Nop(), SummarizerOptions{})

	req := models.SummaryRequest{ID: 7, Title: "cached", Content: "Body.", ContentHash: "hash-7"}
	_, err := s.BatchSummarize(context.Background(), []models.SummaryRequest{req})
	require.NoError(t, err)

	req.ID = 8
	got, err := s.BatchSummarize(context.Background(), []models.SummaryRequest{req})
	require.NoError(t, err)
	assert.Equal(t, int64(8), got[0].ID)
	assert.Equal(t, "Summary of cached for readers.", got[0].Summary)
	assert.Equal(t, int32(1), llm.calls.Load())

	entry, err := c.GetSummary(context.Background(), "hash-7")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "fake-model", entry.Model)
}

func TestBatchSummarizeDoesNotCacheFallback(t *testing.T) {
	llm := &fakeLLM{failTitle: map[string]bool{"down": true}}
	c := cache.NewMemoryCache()
	s := NewSummarizer(llm, c, logger.Nop(), SummarizerOptions{})

	req := models.SummaryRequest{ID: 1, Title: "down", Content: "Only sentence.", ContentHash: "h"}
	_, err := s.BatchSummarize(context.Background(), []models.SummaryRequest{req})
	require.NoError(t, err)

	entry, err := c.GetSummary(context.Background(), "h")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestBatchSummarizeManyItems(t *testing.T) {
	s := NewSummarizer(&fakeLLM{}, nil, logger.Nop(), SummarizerOptions{Workers: 4})
	var reqs []models.SummaryRequest
	for i := 0; i < 25; i++ {
		reqs = append(reqs, models.SummaryRequest{ID: int64(i), Title: fmt.Sprintf("t%d", i), Content: "c"})
	}
	got, err := s.BatchSummarize(context.Background(), reqs)
	require.NoError(t, err)
	for i, r := range got {
		assert.Equal(t, int64(i), r.ID)
		assert.True(t, strings.Contains(r.Summary, fmt.Sprintf("t%d ", i)))
	}
}

func TestBatchSummarizeCancelled(t *testing.T) {
	s := NewSummarizer(&fakeLLM{}, nil, logger.Nop(), SummarizerOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.BatchSummarize(ctx, []models.SummaryRequest{{ID: 1, Title: "x"}})
	assert.ErrorIs(t, err, context.Canceled)
}
