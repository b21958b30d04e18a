package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/eop-tender-crawler/internal/analysis"
	"github.com/JakeFAU/eop-tender-crawler/internal/hash/sha256"
	"github.com/JakeFAU/eop-tender-crawler/internal/metrics"
	"github.com/JakeFAU/eop-tender-crawler/internal/notify"
)

type scrapeOptions struct {
	analyze bool
	filter  bool
}

// newScrapeCmd creates the 'scrape' subcommand.
func newScrapeCmd() *cobra.Command {
	opts := &scrapeOptions{}
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Crawls today's tenders and checkpoints them to the JSON snapshot",
		Long: `Opens the listing, extracts every tender published today or later and
rewrites the snapshot after each page. The crawl stops at the first tender
published before today or when the last page has been processed.

With --filter the finished snapshot is matched against the IT keyword list.
With --analyze (or analysis.enabled) it is sent to the analysis service.
Neither stage can fail the command once the snapshot is written.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScrape(cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.analyze, "analyze", false, "send the finished snapshot to the analysis service")
	cmd.Flags().BoolVar(&opts.filter, "filter", false, "print tenders matching the IT keyword list")
	return cmd
}

func runScrape(cmd *cobra.Command, opts *scrapeOptions) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config()
	logger := appInstance.Logger()

	engine, release, err := appInstance.NewEngine()
	if err != nil {
		return err
	}
	defer func() {
		if rerr := release(); rerr != nil {
			logger.Warn("Failed to release browser", zap.Error(rerr))
		}
	}()

	started := time.Now()
	res, err := engine.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("run crawler: %w", err)
	}
	metrics.ObserveRun(res, time.Since(started))
	printRunSummary(cmd.OutOrStdout(), res, cfg.Output.SnapshotPath)

	summary := notify.SummaryFrom(res, cfg.Output.SnapshotPath)
	if digest, err := sha256.New().HashFile(cfg.Output.SnapshotPath); err != nil {
		logger.Warn("Failed to fingerprint snapshot", zap.Error(err))
	} else {
		summary.SnapshotSHA256 = digest
	}

	if opts.filter {
		matches := appInstance.Keywords().Apply(res.Snapshot.Tenders)
		printMatches(cmd.OutOrStdout(), matches, len(res.Snapshot.Tenders))
		count := len(matches)
		summary.ITMatches = &count
	}

	if opts.analyze || cfg.Analysis.Enabled {
		report, err := appInstance.Forwarder().Forward(cmd.Context(), cfg.Output.SnapshotPath)
		switch {
		case errors.Is(err, analysis.ErrNoCredential):
			logger.Warn("Analysis skipped: no API key configured")
		case err != nil:
			logger.Warn("Analysis failed; snapshot is unaffected", zap.Error(err))
		default:
			summary.AnalysisPath = report.Path
			fmt.Fprintf(cmd.OutOrStdout(), "Analysis saved to %s\n", report.Path)
		}
	}

	if cfg.Output.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(cfg.Output.MetricsTextfile); err != nil {
			logger.Warn("Failed to export metrics", zap.Error(err))
		}
	}

	if n := appInstance.Notifier(); n != nil {
		if err := n.Notify(cmd.Context(), summary); err != nil {
			logger.Warn("Run notification failed", zap.Error(err))
		}
	}

	logger.Info("Scrape command finished.")
	return nil
}
