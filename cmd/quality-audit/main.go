// Command quality-audit samples recent summaries, scores them and exits non-zero
// when the sample falls below the quality thresholds.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bilgisen/newsauto/internal/app"
	"github.com/bilgisen/newsauto/internal/config"
	"github.com/bilgisen/newsauto/internal/logger"
	"github.com/bilgisen/newsauto/internal/quality"
)

var errBreached = errors.New("quality threshold breached")

func main() {
	err := rootCmd().Execute()
	switch {
	case errors.Is(err, errBreached):
		os.Exit(1)
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	sampleRate float64
	daysBack   int
	contentID  int64
	output     string
}

func rootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "quality-audit",
		Short: "Score a sample of recent content for quality issues",
		Long: `Score a random sample of recently summarized content for hallucination,
factual accuracy and sentiment, persisting the scores on each item.

Exits with status 1 when the average score is below the configured minimum,
when too many sampled items need review, or on error.

Examples:
  quality-audit                       # 10% of the last day
  quality-audit --sample-rate 0.5 --days-back 7
  quality-audit --content-id 42 --output json
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.output != "json" && opts.output != "text" {
				return fmt.Errorf("--output must be json or text, got %q", opts.output)
			}
			if opts.sampleRate < 0 || opts.sampleRate > 1 {
				return fmt.Errorf("--sample-rate must be within [0,1], got %v", opts.sampleRate)
			}
			return execute(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().Float64Var(&opts.sampleRate, "sample-rate", 0.10, "Share of recent content to sample (0..1)")
	cmd.Flags().IntVar(&opts.daysBack, "days-back", 1, "Days of content to consider")
	cmd.Flags().Int64Var(&opts.contentID, "content-id", 0, "Score this content item instead of sampling")
	cmd.Flags().StringVar(&opts.output, "output", "text", "Output format: json or text")
	return cmd
}

func execute(w io.Writer, opts options) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Output: cfg.LogFile, Pretty: cfg.LogPretty})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	th := thresholds{minAverage: cfg.AuditMinAverage, maxFlagged: cfg.AuditMaxFlaggedPct}
	var up reportUploader
	if a.Uploader != nil {
		up = a.Uploader
	}
	return audit(ctx, w, a.Auditor, up, th, opts)
}

type thresholds struct {
	minAverage float64
	maxFlagged float64
}

// auditRunner is satisfied by *quality.Auditor
type auditRunner interface {
	SampleAndScore(ctx context.Context, rate float64, daysBack int) (*quality.Summary, error)
	ScoreOne(ctx context.Context, id int64) (*quality.ItemReport, error)
}

// reportUploader is satisfied by *export.Uploader
type reportUploader interface {
	UploadAudit(ctx context.Context, ts time.Time, summary any) (string, error)
}

// audit runs one audit and writes the report; errBreached signals a failing sample
func audit(ctx context.Context, w io.Writer, runner auditRunner, up reportUploader, th thresholds, opts options) error {
	if opts.contentID > 0 {
		rep, err := runner.ScoreOne(ctx, opts.contentID)
		if err != nil {
			return err
		}
		if opts.output == "json" {
			return writeJSON(w, rep)
		}
		writeItemText(w, rep)
		return nil
	}

	sum, err := runner.SampleAndScore(ctx, opts.sampleRate, opts.daysBack)
	if err != nil {
		return err
	}

	if up != nil && sum.Sampled > 0 {
		if _, err := up.UploadAudit(ctx, sum.Timestamp, sum); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	breached := sum.Breached(th.minAverage, th.maxFlagged)
	if opts.output == "json" {
		if err := writeJSON(w, sum); err != nil {
			return err
		}
	} else {
		writeSummaryText(w, sum, breached)
	}

	if breached {
		return errBreached
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeItemText(w io.Writer, rep *quality.ItemReport) {
	r := rep.Result
	fmt.Fprintf(w, "\nQuality Score for Content #%d\n", rep.ContentID)
	fmt.Fprintf(w, "   Title: %s\n", rep.Title)
	fmt.Fprintf(w, "   Overall Score: %.3f\n", r.QualityScore)
	fmt.Fprintf(w, "   Hallucination: %.3f\n", r.HallucinationScore)
	fmt.Fprintf(w, "   Factual: %.3f\n", r.FactualScore)
	fmt.Fprintf(w, "   Sentiment: %.3f\n", r.SentimentScore)
	fmt.Fprintf(w, "   Confidence: %.3f\n", r.ConfidenceScore)
	review := "no"
	if r.NeedsReview {
		review = "YES"
	}
	fmt.Fprintf(w, "   Needs Review: %s\n", review)
	if len(r.Flags) > 0 {
		fmt.Fprintf(w, "   Flags: %s\n", strings.Join(r.Flags, ", "))
	}
	if len(r.Degraded) > 0 {
		fmt.Fprintf(w, "   Degraded: %s\n", strings.Join(r.Degraded, ", "))
	}

	an := rep.Analysis
	if an == nil {
		return
	}
	fmt.Fprintln(w, "\nDetails:")
	if h := an.Hallucination; h != nil {
		fmt.Fprintf(w, "   Hallucination Risk: %s\n", h.RiskLevel)
		for _, p := range h.FlaggedPatterns {
			fmt.Fprintf(w, "     unverified: %s\n", p)
		}
	}
	if c := an.Credibility; c != nil {
		fmt.Fprintf(w, "   Source Trust: %s (%s, %.2f)\n", c.TrustLevel, c.Domain, c.CredibilityScore)
	}
	if sa := an.Sentiment; sa != nil {
		fmt.Fprintf(w, "   Sentiment: %s\n", sa.Classification)
	}
	if t := an.Tone; t != nil {
		if len(t.Issues) > 0 {
			fmt.Fprintf(w, "   Tone Issues: %s\n", strings.Join(t.Issues, ", "))
		}
		fmt.Fprintf(w, "   Tone: %s\n", t.Recommendation)
	}
}

func writeSummaryText(w io.Writer, s *quality.Summary, breached bool) {
	fmt.Fprintln(w, "\nContent Quality Report")
	fmt.Fprintf(w, "   Time: %s\n", s.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(w, "   Total Content: %d\n", s.TotalContent)
	fmt.Fprintf(w, "   Sampled: %d\n", s.Sampled)
	if s.Sampled == 0 {
		fmt.Fprintln(w, "   No recent content to score.")
		return
	}
	fmt.Fprintf(w, "   Average Score: %.3f\n", s.AverageQualityScore)
	fmt.Fprintf(w, "   Flagged for Review: %d (%.1f%%)\n", s.Flagged, s.FlaggedFraction()*100)
	fmt.Fprintf(w, "   Low Quality: %d\n", s.LowQualityCount)
	if s.SaveErrors > 0 {
		fmt.Fprintf(w, "   Save Errors: %d\n", s.SaveErrors)
	}

	if len(s.FlaggedItems) > 0 {
		fmt.Fprintln(w, "\nFlagged Items:")
		for _, it := range s.FlaggedItems {
			fmt.Fprintf(w, "   - Content #%d: %.2f - %s\n", it.ContentID, it.QualityScore, strings.Join(it.Flags, ", "))
		}
	}
	if breached {
		fmt.Fprintln(w, "\nQuality threshold breached! Please review flagged content.")
	}
}
