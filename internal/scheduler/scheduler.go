package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/bilgisen/newsauto/internal/aggregator"
)

// Pipeline is what one scheduled cycle drives; *aggregator.Aggregator satisfies it
type Pipeline interface {
	FetchAll(ctx context.Context, f aggregator.Filter) (*aggregator.FetchResult, error)
	ProcessPending(ctx context.Context, limit int) (*aggregator.PendingResult, error)
}

// Options tunes the scheduler
type Options struct {
	Spec         string
	Location     *time.Location
	PendingLimit int
	// CycleTimeout bounds a single fetch+summarize cycle
	CycleTimeout time.Duration
}

// Scheduler runs fetch cycles on a cron schedule. Overlapping runs are skipped.
type Scheduler struct {
	cron     *cron.Cron
	pipeline Pipeline
	opts     Options
	log      zerolog.Logger

	// base is the parent of scheduled cycles; Run cancels it on shutdown
	base   context.Context
	cancel context.CancelFunc
}

func New(pipeline Pipeline, log zerolog.Logger, opts Options) (*Scheduler, error) {
	if opts.Spec == "" {
		opts.Spec = "*/30 * * * *"
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.CycleTimeout <= 0 {
		opts.CycleTimeout = 25 * time.Minute
	}

	log = log.With().Str("component", "scheduler").Logger()
	cronLog := cronLogger{log: log}
	base, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(opts.Location),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		pipeline: pipeline,
		opts:     opts,
		log:      log,
		base:     base,
		cancel:   cancel,
	}

	if _, err := s.cron.AddFunc(opts.Spec, func() { s.RunCycle(s.base) }); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid fetch schedule %q: %w", opts.Spec, err)
	}
	return s, nil
}

// RunCycle fetches every due source and then summarizes what is pending
func (s *Scheduler) RunCycle(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.CycleTimeout)
	defer cancel()

	start := time.Now()
	fetched, err := s.pipeline.FetchAll(ctx, aggregator.Filter{})
	if err != nil {
		s.log.Error().Err(err).Msg("Fetch cycle failed")
		return
	}

	pending, err := s.pipeline.ProcessPending(ctx, s.opts.PendingLimit)
	if err != nil {
		s.log.Error().Err(err).Msg("Summarization failed")
		return
	}

	s.log.Info().
		Int("sources", fetched.SourcesAttempted).
		Int("added", fetched.ItemsAdded).
		Int("source_errors", len(fetched.Errors)).
		Int("summarized", pending.Summarized).
		Dur("duration", time.Since(start)).
		Msg("Cycle complete")
}

// Run starts the schedule and blocks until ctx is done. A cycle still running
// at that point is cancelled and waited for.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info().Str("schedule", s.opts.Spec).Str("timezone", s.opts.Location.String()).Msg("Scheduler started")
	s.cron.Start()
	<-ctx.Done()
	stopped := s.cron.Stop()
	s.cancel()
	<-stopped.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// Next is the next scheduled run time
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Schedule.Next(time.Now().In(s.opts.Location))
}

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
