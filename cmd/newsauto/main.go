// Command newsauto fetches, summarizes and ranks newsletter content.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bilgisen/newsauto/internal/app"
	"github.com/bilgisen/newsauto/internal/config"
	"github.com/bilgisen/newsauto/internal/logger"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "newsauto",
		Short:         "Content ingestion for newsletters",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(fetchCmd(), summarizeCmd(), candidatesCmd(), sourcesCmd(), statusCmd(), runCmd())
	return cmd
}

// withApp loads configuration, builds the application and tears it down after fn
func withApp(fn func(ctx context.Context, a *app.App) error) error {
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
	defer func() {
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("Error during shutdown")
		}
	}()

	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
