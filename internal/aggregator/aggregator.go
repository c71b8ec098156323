package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/bilgisen/newsauto/internal/cache"
	"github.com/bilgisen/newsauto/internal/feed"
	"github.com/bilgisen/newsauto/internal/models"
	"github.com/bilgisen/newsauto/internal/storage"
	"github.com/bilgisen/newsauto/internal/utils"
)

// Store is the persistence the aggregator needs
type Store interface {
	ListSources(ctx context.Context, f storage.SourceFilter) ([]models.ContentSource, error)
	URLExists(ctx context.Context, url string) (bool, error)
	InsertItem(ctx context.Context, item *models.ContentItem) (int64, error)
	UpdateSourceFetchState(ctx context.Context, id int64, fetchedAt time.Time, failures int) error
	RecordSourceFailure(ctx context.Context, id int64) error
	ListUnprocessed(ctx context.Context, limit int) ([]models.ContentItem, error)
	ApplySummary(ctx context.Context, id int64, u storage.SummaryUpdate) error
	RecentContent(ctx context.Context, q storage.RecentQuery) ([]models.ContentItem, error)
}

// Summarizer is the summarization collaborator
type Summarizer interface {
	BatchSummarize(ctx context.Context, reqs []models.SummaryRequest) ([]models.SummaryResult, error)
}

// Options tunes the aggregator; zero values pick defaults
type Options struct {
	MaxConcurrency int
	SourceTimeout  time.Duration
	SeenTTL        time.Duration
	BatchSize      int
	Now            func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxConcurrency < 1 {
		o.MaxConcurrency = 5
	}
	if o.SourceTimeout <= 0 {
		o.SourceTimeout = 2 * time.Minute
	}
	if o.SeenTTL <= 0 {
		o.SeenTTL = 30 * 24 * time.Hour
	}
	if o.BatchSize < 1 {
		o.BatchSize = 5
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Filter selects which sources FetchAll considers
type Filter struct {
	NewsletterID *int64
	SourceIDs    []int64
	Force        bool
}

// SourceError is a fetch failure attributed to one source
type SourceError struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}

// SourceStats counts what happened to one source's items in a cycle
type SourceStats struct {
	Fetched    int `json:"fetched"`
	Added      int `json:"added"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
	Invalid    int `json:"invalid"`
	Excluded   int `json:"excluded"`
	Failures   int `json:"failures"`
}

// FetchResult summarizes one FetchAll cycle
type FetchResult struct {
	SourcesAttempted int                    `json:"sources_attempted"`
	ItemsAdded       int                    `json:"items_added"`
	Errors           []SourceError          `json:"errors"`
	PerSource        map[string]SourceStats `json:"per_source"`
}

type Aggregator struct {
	store      Store
	registry   *feed.Registry
	parser     *feed.Parser
	cache      cache.Cache
	summarizer Summarizer
	log        zerolog.Logger
	opts       Options
}

func New(store Store, registry *feed.Registry, c cache.Cache, summarizer Summarizer, log zerolog.Logger, opts Options) *Aggregator {
	return &Aggregator{
		store:      store,
		registry:   registry,
		parser:     feed.NewParser(),
		cache:      c,
		summarizer: summarizer,
		log:        log.With().Str("component", "aggregator").Logger(),
		opts:       opts.withDefaults(),
	}
}

// FetchAll fetches every eligible source concurrently. A failing source is
// reported in the result and never affects its siblings. Having nothing
// due is a valid empty result.
func (a *Aggregator) FetchAll(ctx context.Context, f Filter) (*FetchResult, error) {
	start := time.Now()
	now := a.opts.Now()

	sources, err := a.store.ListSources(ctx, storage.SourceFilter{NewsletterID: f.NewsletterID, IDs: f.SourceIDs})
	if err != nil {
		return nil, fmt.Errorf("error loading sources: %w", err)
	}

	var eligible []models.ContentSource
	for _, src := range sources {
		if src.Eligible(now, f.Force) {
			eligible = append(eligible, src)
		}
	}

	result := &FetchResult{
		SourcesAttempted: len(eligible),
		Errors:           []SourceError{},
		PerSource:        make(map[string]SourceStats, len(eligible)),
	}
	if len(eligible) == 0 {
		a.log.Info().Int("sources", len(sources)).Msg("No sources due for fetch")
		return result, nil
	}

	a.log.Info().
		Int("eligible", len(eligible)).
		Bool("force", f.Force).
		Msg("Starting fetch cycle")

	type outcome struct {
		src   models.ContentSource
		stats SourceStats
		err   error
	}

	results := make(chan outcome, len(eligible))
	semaphore := make(chan struct{}, a.opts.MaxConcurrency)

	for _, src := range eligible {
		go func(src models.ContentSource) {
			select {
			case semaphore <- struct{}{}:
			case <-ctx.Done():
				results <- outcome{src: src, err: ctx.Err()}
				return
			}
			defer func() { <-semaphore }()

			stats, err := a.safeFetchSource(ctx, src, now)
			results <- outcome{src: src, stats: stats, err: err}
		}(src)
	}

	for range eligible {
		res := <-results
		result.PerSource[res.src.Name] = res.stats
		result.ItemsAdded += res.stats.Added
		if res.err != nil {
			result.Errors = append(result.Errors, SourceError{Source: res.src.Name, Message: res.err.Error()})
		}
	}

	sort.Slice(result.Errors, func(i, j int) bool { return result.Errors[i].Source < result.Errors[j].Source })

	a.log.Info().
		Int("sources", result.SourcesAttempted).
		Int("items_added", result.ItemsAdded).
		Int("errors", len(result.Errors)).
		Dur("duration", time.Since(start)).
		Msg("Finished fetch cycle")

	return result, nil
}

// safeFetchSource turns a panicking adapter into a per-source error
func (a *Aggregator) safeFetchSource(ctx context.Context, src models.ContentSource, now time.Time) (stats SourceStats, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while fetching: %v", r)
			a.recordFailure(ctx, src, err)
		}
	}()
	return a.fetchSource(ctx, src, now)
}

func (a *Aggregator) fetchSource(ctx context.Context, src models.ContentSource, now time.Time) (SourceStats, error) {
	var stats SourceStats
	log := a.log.With().Str("source", src.Name).Str("type", string(src.Type)).Logger()

	adapter, err := a.registry.Get(src.Type)
	if err != nil {
		a.recordFailure(ctx, src, err)
		return stats, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, a.opts.SourceTimeout)
	raws, err := adapter.FetchRaw(fetchCtx, src)
	cancel()
	if err != nil {
		a.recordFailure(ctx, src, err)
		return stats, err
	}
	stats.Fetched = len(raws)
	log.Debug().Int("raw_items", len(raws)).Msg("Fetched raw items")

	excludes := src.ConfigStrings("exclude_keywords")
	seen := make(map[string]struct{}, len(raws))
	failures := 0

	for _, raw := range raws {
		if ctx.Err() != nil {
			break
		}

		parsed, err := adapter.ParseItem(src, raw)
		if err != nil {
			failures++
			log.Warn().Err(err).Msg("Failed to parse item")
			continue
		}
		if parsed == nil {
			stats.Skipped++
			continue
		}

		item := a.parser.Normalize(*parsed)
		if err := a.parser.Validate(item); err != nil {
			stats.Invalid++
			log.Debug().Err(err).Str("url", item.URL).Msg("Skipping invalid item")
			continue
		}
		if kw, excluded := a.parser.Excluded(item, excludes); excluded {
			stats.Excluded++
			log.Debug().Str("keyword", kw).Str("url", item.URL).Msg("Skipping excluded item")
			continue
		}

		if _, ok := seen[item.URL]; ok {
			stats.Duplicates++
			continue
		}
		seen[item.URL] = struct{}{}

		dup, err := a.isDuplicate(ctx, item.URL)
		if err != nil {
			failures++
			log.Warn().Err(err).Str("url", item.URL).Msg("Duplicate check failed")
			continue
		}
		if dup {
			stats.Duplicates++
			continue
		}

		ci := newContentItem(src, item, now)
		if _, err := a.store.InsertItem(ctx, &ci); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				stats.Duplicates++
				a.markSeen(ctx, ci.URL)
				continue
			}
			failures++
			log.Warn().Err(err).Str("url", ci.URL).Msg("Could not save item")
			continue
		}
		stats.Added++
		a.markSeen(ctx, ci.URL)
	}

	stats.Failures = failures
	if err := ctx.Err(); err != nil {
		// fetch state is left alone so the source is picked up again next cycle
		log.Warn().Int("added", stats.Added).Msg("Fetch interrupted")
		return stats, fmt.Errorf("fetch interrupted: %w", err)
	}
	if err := a.store.UpdateSourceFetchState(ctx, src.ID, now, failures); err != nil {
		log.Error().Err(err).Msg("Failed to update source fetch state")
	}

	log.Info().
		Int("fetched", stats.Fetched).
		Int("added", stats.Added).
		Int("duplicates", stats.Duplicates).
		Int("failures", failures).
		Msg("Processed source")

	return stats, nil
}

func newContentItem(src models.ContentSource, item models.ParsedItem, now time.Time) models.ContentItem {
	metadata := item.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return models.ContentItem{
		SourceID:       src.ID,
		URL:            item.URL,
		Title:          item.Title,
		Author:         item.Author,
		Content:        item.Content,
		ContentHash:    utils.ContentHash(item.URL, item.Title),
		RelevanceScore: Relevance(item, src, now),
		Metadata:       metadata,
		PublishedAt:    item.PublishedAt,
		FetchedAt:      now,
	}
}

// isDuplicate consults the cache first, then the store
func (a *Aggregator) isDuplicate(ctx context.Context, url string) (bool, error) {
	if a.cache != nil {
		seen, err := a.cache.IsProcessed(ctx, utils.Hash(url))
		if err != nil {
			a.log.Warn().Err(err).Msg("Cache lookup failed, falling back to store")
		} else if seen {
			return true, nil
		}
	}
	return a.store.URLExists(ctx, url)
}

func (a *Aggregator) markSeen(ctx context.Context, url string) {
	if a.cache == nil {
		return
	}
	if err := a.cache.MarkProcessed(ctx, utils.Hash(url), a.opts.SeenTTL); err != nil {
		a.log.Warn().Err(err).Str("url", url).Msg("Failed to mark item as seen")
	}
}

func (a *Aggregator) recordFailure(ctx context.Context, src models.ContentSource, cause error) {
	a.log.Error().Err(cause).Str("source", src.Name).Msg("Source fetch failed")
	if err := a.store.RecordSourceFailure(ctx, src.ID); err != nil {
		a.log.Error().Err(err).Str("source", src.Name).Msg("Failed to record source failure")
	}
}
