package aggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/bilgisen/newsauto/internal/models"
	"github.com/bilgisen/newsauto/internal/storage"
)

// Query selects newsletter candidates
type Query struct {
	Hours               int
	MinScore            float64
	Limit               int
	NewsletterID        *int64
	SimilarityThreshold float64
}

// Candidates loads recent items and collapses duplicates before truncating to Limit
func (a *Aggregator) Candidates(ctx context.Context, q Query) ([]models.ContentItem, error) {
	hours := q.Hours
	if hours <= 0 {
		hours = 24
	}

	items, err := a.store.RecentContent(ctx, storage.RecentQuery{
		Since:        a.opts.Now().Add(-time.Duration(hours) * time.Hour),
		MinScore:     q.MinScore,
		NewsletterID: q.NewsletterID,
	})
	if err != nil {
		return nil, fmt.Errorf("error loading recent content: %w", err)
	}

	unique := Dedupe(items, q.SimilarityThreshold)
	if q.Limit > 0 && len(unique) > q.Limit {
		unique = unique[:q.Limit]
	}
	return unique, nil
}
