package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bilgisen/newsauto/internal/models"
	"github.com/bilgisen/newsauto/internal/storage"
)

const defaultPendingLimit = 100

// PendingResult reports a ProcessPending run
type PendingResult struct {
	Selected   int `json:"selected"`
	Summarized int `json:"summarized"`
	Failed     int `json:"failed"`
}

// ProcessPending summarizes items that have no processed_at yet, in batches,
// and writes results back. A failed batch is logged and the rest continue.
func (a *Aggregator) ProcessPending(ctx context.Context, limit int) (*PendingResult, error) {
	if a.summarizer == nil {
		return nil, errors.New("no summarizer configured")
	}
	if limit <= 0 {
		limit = defaultPendingLimit
	}

	items, err := a.store.ListUnprocessed(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing unprocessed items: %w", err)
	}

	res := &PendingResult{Selected: len(items)}
	if len(items) == 0 {
		return res, nil
	}

	start := time.Now()
	for offset := 0; offset < len(items); offset += a.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		batch := items[offset:min(offset+a.opts.BatchSize, len(items))]

		reqs := make([]models.SummaryRequest, len(batch))
		for i, it := range batch {
			reqs[i] = models.SummaryRequest{
				ID:          it.ID,
				Title:       it.Title,
				URL:         it.URL,
				Content:     it.Content,
				ContentHash: it.ContentHash,
			}
		}

		results, err := a.summarizer.BatchSummarize(ctx, reqs)
		if err != nil {
			res.Failed += len(batch)
			a.log.Error().Err(err).Int("batch_size", len(batch)).Msg("Summarization batch failed")
			continue
		}

		known := make(map[int64]struct{}, len(batch))
		for _, it := range batch {
			known[it.ID] = struct{}{}
		}

		applied := 0
		for _, r := range results {
			if _, ok := known[r.ID]; !ok || r.Summary == "" {
				continue
			}
			err := a.store.ApplySummary(ctx, r.ID, storage.SummaryUpdate{
				Summary:     r.Summary,
				KeyPoints:   r.KeyPoints,
				Model:       r.ModelUsed,
				Score:       r.Score,
				ProcessedAt: a.opts.Now(),
			})
			if err != nil {
				a.log.Warn().Err(err).Int64("content_id", r.ID).Msg("Failed to apply summary")
				continue
			}
			applied++
		}
		res.Summarized += applied
		res.Failed += len(batch) - applied
	}

	a.log.Info().
		Int("selected", res.Selected).
		Int("summarized", res.Summarized).
		Int("failed", res.Failed).
		Dur("duration", time.Since(start)).
		Msg("Processed pending items")

	return res, nil
}
