package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/kiranshivaraju/jobhunter/internal/apperr"
	"github.com/kiranshivaraju/jobhunter/internal/ingest"
	"github.com/spf13/cobra"
)

func newIngestCmd(rt *runtime) *cobra.Command {
	var (
		once     bool
		provider string
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch postings from the configured providers",
		Long: `Fetch postings from every enabled provider and upsert them into the catalogue.

Without --once the scheduler keeps running, picking the provider whose last
successful sync is oldest on every tick, until interrupted.

Examples:
  jobhunter ingest --once
  jobhunter ingest --once --provider indeed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if once {
				return runIngestOnce(cmd.Context(), rt, provider)
			}
			if provider != "" {
				return apperr.Configf("provider", "--provider requires --once")
			}
			return runIngestLoop(cmd.Context(), rt)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single pass and exit")
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "only ingest this provider")
	return cmd
}

func runIngestOnce(ctx context.Context, rt *runtime, provider string) error {
	results, err := rt.backend.Ingest.RunOnce(ctx, provider)
	printIngestResults(rt.ui, results)
	return err
}

func runIngestLoop(ctx context.Context, rt *runtime) error {
	if err := rt.backend.Ingest.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	rt.ui.Infof("Ingest scheduler running every %s, press Ctrl+C to stop", rt.cfg.Ingest.Tick)
	<-ctx.Done()
	rt.backend.Ingest.Stop()
	rt.ui.Infof("Ingest scheduler stopped")
	return nil
}

func printIngestResults(u *UI, results []ingest.Result) {
	if len(results) == 0 {
		u.Warnf("No providers ingested")
		return
	}

	u.Printf("%-16s %8s %8s %8s %8s %10s  %s\n", "PROVIDER", "FETCHED", "CREATED", "UPDATED", "SKIPPED", "DURATION", "STATUS")
	for _, r := range results {
		u.Printf("%-16s %8d %8d %8d %8d %10s  %s\n",
			r.Provider, r.Fetched, r.Created, r.Updated, r.Skipped,
			r.Duration.Round(time.Millisecond), ingestStatus(u, r))
	}
}

func ingestStatus(u *UI, r ingest.Result) string {
	switch {
	case r.Err != nil:
		return u.paint(u.Output, "error: "+r.Err.Error(), "1")
	case r.RateLimited && r.FromCache:
		return u.paint(u.Output, fmt.Sprintf("rate limited, served from cache, retry in %s", r.RetryAfter.Round(time.Second)), "3")
	case r.RateLimited:
		return u.paint(u.Output, fmt.Sprintf("rate limited, retry in %s", r.RetryAfter.Round(time.Second)), "3")
	}
	return u.paint(u.Output, "ok", "2")
}
