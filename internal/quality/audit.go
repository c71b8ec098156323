package quality

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/bilgisen/newsauto/internal/models"
)

const lowQualityThreshold = 0.75

// AuditStore is the persistence the auditor reads from and writes back to
type AuditStore interface {
	ListAuditEligible(ctx context.Context, since time.Time) ([]models.ContentItem, error)
	GetItem(ctx context.Context, id int64) (*models.ContentItem, error)
	SaveQuality(ctx context.Context, id int64, q models.QualityFields) error
}

// ItemScorer is satisfied by *Scorer
type ItemScorer interface {
	Score(ctx context.Context, item models.ContentItem) models.QualityResult
}

// Explainer is an ItemScorer that can also break a score down per detector
type Explainer interface {
	Explain(item models.ContentItem) Analysis
}

// AuditOptions tunes an Auditor
type AuditOptions struct {
	Concurrency int
	Rand        *rand.Rand
	Now         func() time.Time
}

// Auditor samples recent summarized content, scores it and persists the results
type Auditor struct {
	store  AuditStore
	scorer ItemScorer
	log    zerolog.Logger

	concurrency int
	now         func() time.Time

	mu   sync.Mutex
	rand *rand.Rand
}

func NewAuditor(store AuditStore, scorer ItemScorer, log zerolog.Logger, opts AuditOptions) *Auditor {
	if opts.Concurrency < 1 {
		opts.Concurrency = 5
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Auditor{
		store:       store,
		scorer:      scorer,
		log:         log.With().Str("component", "auditor").Logger(),
		concurrency: opts.Concurrency,
		now:         opts.Now,
		rand:        opts.Rand,
	}
}

// FlaggedItem is one needs-review entry of an audit
type FlaggedItem struct {
	ContentID    int64    `json:"content_id"`
	Title        string   `json:"title"`
	QualityScore float64  `json:"quality_score"`
	Flags        []string `json:"flags"`
}

// Summary is the outcome of one audit run
type Summary struct {
	Timestamp           time.Time     `json:"timestamp"`
	TotalContent        int           `json:"total_content"`
	Sampled             int           `json:"sampled"`
	Flagged             int           `json:"flagged"`
	LowQualityCount     int           `json:"low_quality_count"`
	AverageQualityScore float64       `json:"average_quality_score"`
	SaveErrors          int           `json:"save_errors"`
	FlaggedItems        []FlaggedItem `json:"flagged_items"`
}

// FlaggedFraction is Flagged/Sampled, zero for an empty sample
func (s Summary) FlaggedFraction() float64 {
	if s.Sampled == 0 {
		return 0
	}
	return float64(s.Flagged) / float64(s.Sampled)
}

// Breached reports whether the audit fails the given thresholds.
// An empty sample never breaches.
func (s Summary) Breached(minAverage, maxFlagged float64) bool {
	if s.Sampled == 0 {
		return false
	}
	return s.AverageQualityScore < minAverage || s.FlaggedFraction() > maxFlagged
}

// SampleSize is max(1, round(n*rate)) capped at n
func SampleSize(n int, rate float64) int {
	if n <= 0 {
		return 0
	}
	size := int(math.Round(float64(n) * rate))
	return min(max(1, size), n)
}

// Sample draws k distinct items uniformly with a partial Fisher-Yates shuffle.
// items is not modified.
func (a *Auditor) Sample(items []models.ContentItem, k int) []models.ContentItem {
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}

	a.mu.Lock()
	for i := 0; i < k; i++ {
		j := i + a.rand.Intn(len(idx)-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	a.mu.Unlock()

	out := make([]models.ContentItem, k)
	for i := 0; i < k; i++ {
		out[i] = items[idx[i]]
	}
	return out
}

// SampleAndScore audits a random share of the items summarized in the last daysBack days
func (a *Auditor) SampleAndScore(ctx context.Context, rate float64, daysBack int) (*Summary, error) {
	if rate < 0 || rate > 1 {
		return nil, fmt.Errorf("sample rate must be within [0,1], got %v", rate)
	}
	if daysBack < 1 {
		daysBack = 1
	}
	now := a.now()

	eligible, err := a.store.ListAuditEligible(ctx, now.AddDate(0, 0, -daysBack))
	if err != nil {
		return nil, fmt.Errorf("error loading audit candidates: %w", err)
	}

	summary := &Summary{
		Timestamp:    now.UTC(),
		TotalContent: len(eligible),
		FlaggedItems: []FlaggedItem{},
	}
	if len(eligible) == 0 {
		a.log.Warn().Int("days_back", daysBack).Msg("No recent content found to score")
		return summary, nil
	}

	sample := a.Sample(eligible, SampleSize(len(eligible), rate))
	a.log.Info().
		Int("sampled", len(sample)).
		Int("total", len(eligible)).
		Float64("rate", rate).
		Msg("Sampling content for audit")

	// A failed write is counted but keeps the in-memory result; it must not
	// cancel the other items.
	results := make([]models.QualityResult, len(sample))
	saveErrs := make([]bool, len(sample))
	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, item := range sample {
		g.Go(func() error {
			res, err := a.scoreAndSave(ctx, item)
			results[i] = res
			if err != nil {
				saveErrs[i] = true
				a.log.Error().Err(err).Int64("content_id", item.ID).Msg("Failed to persist quality score")
			}
			return nil
		})
	}
	_ = g.Wait()

	total := 0.0
	for i, res := range results {
		if saveErrs[i] {
			summary.SaveErrors++
		}
		total += res.QualityScore
		if res.QualityScore < lowQualityThreshold {
			summary.LowQualityCount++
		}
		if res.NeedsReview {
			summary.Flagged++
			summary.FlaggedItems = append(summary.FlaggedItems, FlaggedItem{
				ContentID:    sample[i].ID,
				Title:        sample[i].Title,
				QualityScore: res.QualityScore,
				Flags:        res.Flags,
			})
		}
	}
	summary.Sampled = len(sample)
	summary.AverageQualityScore = round3(total / float64(len(sample)))

	a.log.Info().
		Int("flagged", summary.Flagged).
		Int("save_errors", summary.SaveErrors).
		Int("sampled", summary.Sampled).
		Float64("average", summary.AverageQualityScore).
		Msg("Quality audit complete")
	return summary, nil
}

// ItemReport is the result of scoring a single item
type ItemReport struct {
	ContentID int64                `json:"content_id"`
	Title     string               `json:"title"`
	Result    models.QualityResult `json:"result"`
	Analysis  *Analysis            `json:"analysis,omitempty"`
	ScoredAt  time.Time            `json:"scored_at"`
}

// ScoreOne scores and persists one item by id; a missing id surfaces the store's not-found error
func (a *Auditor) ScoreOne(ctx context.Context, id int64) (*ItemReport, error) {
	item, err := a.store.GetItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error loading content item %d: %w", id, err)
	}
	res, err := a.scoreAndSave(ctx, *item)
	if err != nil {
		return nil, err
	}
	rep := &ItemReport{
		ContentID: item.ID,
		Title:     item.Title,
		Result:    res,
		ScoredAt:  a.now().UTC(),
	}
	if ex, ok := a.scorer.(Explainer); ok {
		an := ex.Explain(*item)
		rep.Analysis = &an
	}
	return rep, nil
}

func (a *Auditor) scoreAndSave(ctx context.Context, item models.ContentItem) (models.QualityResult, error) {
	res := a.scorer.Score(ctx, item)
	if err := a.store.SaveQuality(ctx, item.ID, ToFields(res, a.now().UTC())); err != nil {
		return res, fmt.Errorf("error saving quality for item %d: %w", item.ID, err)
	}
	return res, nil
}
