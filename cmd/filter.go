package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/eop-tender-crawler/internal/checkpoint"
	"github.com/JakeFAU/eop-tender-crawler/internal/keywords"
)

// newFilterCmd creates the 'filter' subcommand.
func newFilterCmd() *cobra.Command {
	var (
		snapshot string
		terms    []string
	)
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Lists IT-related tenders in an existing snapshot",
		Long: `Reads a snapshot and prints every tender whose objective, documentation
or buyer contains one of the keywords, ignoring case. Nothing is written.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if snapshot == "" {
				snapshot = appInstance.Config().Output.SnapshotPath
			}
			data, err := checkpoint.Load(snapshot)
			if err != nil {
				return fmt.Errorf("load snapshot: %w", err)
			}

			filter := appInstance.Keywords()
			if len(terms) > 0 {
				filter = keywords.New(terms)
			}
			printMatches(cmd.OutOrStdout(), filter.Apply(data.Tenders), len(data.Tenders))
			return nil
		},
	}
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "snapshot to read (default output.snapshot_path)")
	cmd.Flags().StringSliceVar(&terms, "terms", nil, "comma separated keywords replacing the configured list")
	return cmd
}
