package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bilgisen/newsauto/internal/aggregator"
	"github.com/bilgisen/newsauto/internal/app"
	"github.com/bilgisen/newsauto/internal/config"
	"github.com/bilgisen/newsauto/internal/storage"
)

func fetchCmd() *cobra.Command {
	var (
		force        bool
		resetSeen    bool
		sourceIDs    []int64
		newsletterID int64
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch all due sources once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				if resetSeen {
					if err := a.Cache.ClearProcessed(ctx); err != nil {
						return fmt.Errorf("error clearing seen URLs: %w", err)
					}
					a.Log.Info().Msg("Cleared seen URL markers")
				}
				f := aggregator.Filter{SourceIDs: sourceIDs, Force: force}
				if cmd.Flags().Changed("newsletter-id") {
					f.NewsletterID = &newsletterID
				}
				res, err := a.Aggregator.FetchAll(ctx, f)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Ignore fetch cadence")
	cmd.Flags().BoolVar(&resetSeen, "reset-seen", false, "Forget cached seen URLs before fetching")
	cmd.Flags().Int64SliceVar(&sourceIDs, "source-id", nil, "Only fetch these source ids")
	cmd.Flags().Int64Var(&newsletterID, "newsletter-id", 0, "Only fetch sources of this newsletter")
	return cmd
}

func summarizeCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Summarize items that have not been processed yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				if err := a.LLM.CheckModel(ctx); err != nil {
					a.Log.Warn().Err(err).Msg("Ollama not ready, summaries will fall back to extractive")
				}
				res, err := a.Aggregator.ProcessPending(ctx, limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of items to summarize")
	return cmd
}

func candidatesCmd() *cobra.Command {
	var (
		q            aggregator.Query
		newsletterID int64
	)

	cmd := &cobra.Command{
		Use:   "candidates",
		Short: "List deduplicated newsletter candidates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				if cmd.Flags().Changed("newsletter-id") {
					q.NewsletterID = &newsletterID
				}
				items, err := a.Aggregator.Candidates(ctx, q)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), items)
			})
		},
	}

	cmd.Flags().IntVar(&q.Hours, "hours", 24, "Look back this many hours")
	cmd.Flags().Float64Var(&q.MinScore, "min-score", 0, "Minimum relevance score")
	cmd.Flags().IntVar(&q.Limit, "limit", 20, "Maximum number of candidates")
	cmd.Flags().Float64Var(&q.SimilarityThreshold, "similarity", aggregator.DefaultSimilarityThreshold, "Title similarity treated as duplicate")
	cmd.Flags().Int64Var(&newsletterID, "newsletter-id", 0, "Only items from sources of this newsletter")
	return cmd
}

func sourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage content sources",
	}

	var file string
	seed := &cobra.Command{
		Use:   "seed",
		Short: "Create or update sources from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				path := file
				if path == "" {
					path = a.Config.SourcesFile
				}
				if path == "" {
					return fmt.Errorf("no sources file given; use --file or SOURCES_FILE")
				}

				sources, err := config.LoadSources(path)
				if err != nil {
					return err
				}
				if err := a.ValidateSources(sources); err != nil {
					return err
				}
				for i := range sources {
					id, err := a.Store.UpsertSource(ctx, &sources[i])
					if err != nil {
						return fmt.Errorf("error saving source %s: %w", sources[i].Name, err)
					}
					a.Log.Info().Int64("id", id).Str("source", sources[i].Name).Msg("Source saved")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d sources saved\n", len(sources))
				return nil
			})
		},
	}
	seed.Flags().StringVar(&file, "file", "", "YAML sources file (defaults to SOURCES_FILE)")

	var activeOnly bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				sources, err := a.Store.ListSources(ctx, storage.SourceFilter{ActiveOnly: activeOnly})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), sources)
			})
		},
	}
	list.Flags().BoolVar(&activeOnly, "active", false, "Only active sources")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid source id %q", args[0])
			}
			return withApp(func(ctx context.Context, a *app.App) error {
				src, err := a.Store.GetSource(ctx, id)
				if err != nil {
					return fmt.Errorf("source %d: %w", id, err)
				}
				return printJSON(cmd.OutOrStdout(), src)
			})
		},
	}

	cmd.AddCommand(seed, list, show)
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show stored item and source counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				st, err := a.Status(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), st)
			})
		},
	}
}

func runCmd() *cobra.Command {
	var (
		limit int
		now   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch and summarize on the configured schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				s, err := a.Scheduler(limit)
				if err != nil {
					return err
				}
				if now {
					s.RunCycle(ctx)
				}
				a.Log.Info().Time("next_run", s.Next()).Msg("Waiting for schedule")
				s.Run(ctx)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum items summarized per cycle")
	cmd.Flags().BoolVar(&now, "now", false, "Run one cycle immediately before waiting")
	return cmd
}
