package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/eop-tender-crawler/internal/analysis"
)

// newAnalyzeCmd creates the 'analyze' subcommand.
func newAnalyzeCmd() *cobra.Command {
	var snapshot string
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Sends an existing snapshot to the analysis service",
		Long: `Builds a prompt from the snapshot and writes the service's answer to a new
it_tender_analysis_<timestamp>.txt file. A missing API key or a service error
is reported and the command still succeeds; the snapshot is never modified.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if snapshot == "" {
				snapshot = appInstance.Config().Output.SnapshotPath
			}
			report, err := appInstance.Forwarder().Forward(cmd.Context(), snapshot)
			switch {
			case errors.Is(err, analysis.ErrNoCredential):
				appInstance.Logger().Warn("Analysis skipped: set TENDER_ANALYSIS_API_KEY or ANTHROPIC_API_KEY")
				fmt.Fprintln(cmd.OutOrStdout(), "No analysis produced: API key not configured")
			case err != nil:
				appInstance.Logger().Warn("Analysis failed", zap.Error(err))
				fmt.Fprintln(cmd.OutOrStdout(), "No analysis produced:", err)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "Analysis of %d tenders saved to %s\n", report.Tenders, report.Path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "snapshot to analyze (default output.snapshot_path)")
	return cmd
}
