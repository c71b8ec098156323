package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bilgisen/newsauto/internal/aggregator"
	"github.com/bilgisen/newsauto/internal/ai"
	"github.com/bilgisen/newsauto/internal/cache"
	"github.com/bilgisen/newsauto/internal/config"
	"github.com/bilgisen/newsauto/internal/export"
	"github.com/bilgisen/newsauto/internal/feed"
	"github.com/bilgisen/newsauto/internal/models"
	"github.com/bilgisen/newsauto/internal/quality"
	"github.com/bilgisen/newsauto/internal/scheduler"
	"github.com/bilgisen/newsauto/internal/storage"
)

// App owns every long-lived dependency. Nothing is global; the entry point
// builds one App and closes it on the way out.
type App struct {
	Config     *config.Config
	Log        zerolog.Logger
	Store      *storage.Store
	Cache      cache.Cache
	Registry   *feed.Registry
	LLM        *ai.OllamaClient
	Aggregator *aggregator.Aggregator
	Scorer     *quality.Scorer
	Auditor    *quality.Auditor
	Uploader   *export.Uploader // nil unless R2 is configured
}

// New wires the application from cfg
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	store, err := storage.Open(cfg.DatabasePath, log)
	if err != nil {
		return nil, err
	}
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("database not reachable: %w", err)
	}

	c, err := newCache(ctx, cfg, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	httpClient := feed.NewHTTPClient(cfg.HTTPTimeout)
	registry := feed.NewDefaultRegistry(httpClient, feed.NewParser())

	llm := ai.NewOllamaClient(cfg.OllamaHost, cfg.OllamaModel, cfg.OllamaTimeout)
	summarizer := ai.NewSummarizer(
		llm,
		c, log,
		ai.SummarizerOptions{Workers: cfg.MaxConcurrency, CacheTTL: cfg.CacheTTL},
	)

	agg := aggregator.New(store, registry, c, summarizer, log, aggregator.Options{
		MaxConcurrency: cfg.MaxConcurrency,
		SourceTimeout:  cfg.SourceFetchTimeout,
		SeenTTL:        cfg.CacheTTL,
		BatchSize:      cfg.SummaryBatchSize,
	})

	scorer := quality.NewScorer(
		quality.NewHallucinationDetector(),
		quality.NewFactualChecker(cfg.URLCheckTimeout, log),
		quality.NewSentimentAnalyzer(),
		log,
	)
	auditor := quality.NewAuditor(store, scorer, log, quality.AuditOptions{Concurrency: cfg.MaxConcurrency})

	a := &App{
		Config:     cfg,
		Log:        log,
		Store:      store,
		Cache:      c,
		Registry:   registry,
		LLM:        llm,
		Aggregator: agg,
		Scorer:     scorer,
		Auditor:    auditor,
	}

	if cfg.R2Enabled() {
		client, err := export.NewR2Client(ctx, export.R2Config{
			Endpoint:  cfg.R2Endpoint,
			AccessKey: cfg.R2AccessKey,
			SecretKey: cfg.R2SecretKey,
			Bucket:    cfg.R2Bucket,
		})
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Uploader = export.NewUploader(client, cfg.R2Bucket, log)
	}

	return a, nil
}

// Scheduler builds the cron scheduler over the aggregator
func (a *App) Scheduler(pendingLimit int) (*scheduler.Scheduler, error) {
	return scheduler.New(a.Aggregator, a.Log, scheduler.Options{
		Spec:         a.Config.FetchSchedule,
		Location:     a.Config.Location(),
		PendingLimit: pendingLimit,
	})
}

// Status is a snapshot of what is stored
type Status struct {
	Items          int                 `json:"items"`
	Sources        int                 `json:"sources"`
	ActiveSources  int                 `json:"active_sources"`
	SupportedTypes []models.SourceType `json:"supported_types"`
}

// Status counts stored items and sources
func (a *App) Status(ctx context.Context) (*Status, error) {
	items, err := a.Store.CountItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("error counting items: %w", err)
	}
	all, err := a.Store.ListSources(ctx, storage.SourceFilter{})
	if err != nil {
		return nil, err
	}
	active, err := a.Store.ListSources(ctx, storage.SourceFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	return &Status{
		Items:          items,
		Sources:        len(all),
		ActiveSources:  len(active),
		SupportedTypes: a.Registry.Types(),
	}, nil
}

// ValidateSources rejects sources whose type has no registered adapter
func (a *App) ValidateSources(sources []models.ContentSource) error {
	for _, src := range sources {
		if _, err := a.Registry.Get(src.Type); err != nil {
			return fmt.Errorf("source %s: %w (supported: %v)", src.Name, err, a.Registry.Types())
		}
	}
	return nil
}

// Close releases the cache and the database
func (a *App) Close() error {
	var errs []error
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing cache: %w", err))
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing store: %w", err))
		}
	}
	return errors.Join(errs...)
}

func newCache(ctx context.Context, cfg *config.Config, log zerolog.Logger) (cache.Cache, error) {
	if cfg.RedisURL == "" {
		log.Info().Msg("REDIS_URL not set, using in-memory cache")
		return cache.NewMemoryCache(), nil
	}
	c, err := cache.NewRedisClient(ctx, cfg.RedisURL, cfg.RedisPrefix)
	if err != nil {
		return nil, fmt.Errorf("error initializing cache: %w", err)
	}
	return c, nil
}
