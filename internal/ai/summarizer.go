package ai

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/bilgisen/newsauto/internal/cache"
	"github.com/bilgisen/newsauto/internal/models"
	"github.com/bilgisen/newsauto/internal/utils"
)

// ExtractiveModel is reported as model_used when the fallback produced the summary
const ExtractiveModel = "extractive"

const fallbackSentences = 3

// LLM is the language model the summarizer talks to; *OllamaClient satisfies it
type LLM interface {
	Model() string
	Summarize(ctx context.Context, title, content string) (string, error)
	KeyPoints(ctx context.Context, content string, maxPoints int) ([]string, error)
}

// SummarizerOptions tunes a Summarizer; zero values pick defaults
type SummarizerOptions struct {
	Workers   int
	CacheTTL  time.Duration
	MaxPoints int
}

// Summarizer turns batches of content into summaries with a bounded worker pool.
// Results are cached by content hash; when the model fails, the first sentences of
// the content are used instead.
type Summarizer struct {
	llm   LLM
	cache cache.Cache
	post  *PostProcessor
	opts  SummarizerOptions
	log   zerolog.Logger
}

func NewSummarizer(llm LLM, c cache.Cache, log zerolog.Logger, opts SummarizerOptions) *Summarizer {
	if opts.Workers < 1 {
		opts.Workers = 3
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 7 * 24 * time.Hour
	}
	if opts.MaxPoints < 1 {
		opts.MaxPoints = 5
	}
	return &Summarizer{
		llm:   llm,
		cache: c,
		post:  NewPostProcessor(),
		opts:  opts,
		log:   log.With().Str("component", "summarizer").Logger(),
	}
}

// BatchSummarize returns one result per request, in request order.
// It only fails when ctx is done before the batch completes.
func (s *Summarizer) BatchSummarize(ctx context.Context, reqs []models.SummaryRequest) ([]models.SummaryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type job struct {
		idx int
		req models.SummaryRequest
	}
	type result struct {
		idx int
		res models.SummaryResult
	}

	jobs := make(chan job)
	results := make(chan result, len(reqs))

	for w := 0; w < min(s.opts.Workers, len(reqs)); w++ {
		go func() {
			for j := range jobs {
				results <- result{idx: j.idx, res: s.summarizeOne(ctx, j.req)}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, r := range reqs {
			select {
			case jobs <- job{idx: i, req: r}:
			case <-ctx.Done():
				return
			}
		}
	}()

	out := make([]models.SummaryResult, len(reqs))
	for range reqs {
		select {
		case r := <-results:
			out[r.idx] = r.res
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return out, nil
}

func (s *Summarizer) summarizeOne(ctx context.Context, req models.SummaryRequest) models.SummaryResult {
	res := models.SummaryResult{ID: req.ID}
	key := cacheKey(req)
	log := s.log.With().Int64("content_id", req.ID).Logger()

	if s.cache != nil {
		cached, err := s.cache.GetSummary(ctx, key)
		if err != nil {
			log.Warn().Err(err).Msg("Summary cache lookup failed")
		} else if cached != nil {
			log.Debug().Msg("Summary cache hit")
			res.Summary, res.KeyPoints, res.ModelUsed = cached.Summary, cached.KeyPoints, cached.Model
			return res
		}
	}

	summary, err := s.llm.Summarize(ctx, req.Title, req.Content)
	if err == nil {
		summary, err = s.post.ProcessSummary(summary)
	}
	if err != nil {
		log.Warn().Err(err).Msg("Model summary failed, using extractive fallback")
		res.Summary = s.post.ExtractiveSummary(req.Content, fallbackSentences)
		if res.Summary != "" {
			res.ModelUsed = ExtractiveModel
		}
		return res
	}
	res.Summary = summary
	res.ModelUsed = s.llm.Model()

	points, err := s.llm.KeyPoints(ctx, req.Content, s.opts.MaxPoints)
	if err != nil {
		log.Warn().Err(err).Msg("Key point extraction failed")
	}
	res.KeyPoints = s.post.ProcessKeyPoints(points)

	if s.cache != nil {
		entry := cache.Summary{Summary: res.Summary, KeyPoints: res.KeyPoints, Model: res.ModelUsed}
		if err := s.cache.SetSummary(ctx, key, entry, s.opts.CacheTTL); err != nil {
			log.Warn().Err(err).Msg("Failed to cache summary")
		}
	}
	return res
}

func cacheKey(req models.SummaryRequest) string {
	if req.ContentHash != "" {
		return req.ContentHash
	}
	return utils.Hash(req.Title + req.Content)
}
