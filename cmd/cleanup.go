// cmd/cleanup.go

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/uiharness/internal/failure"
	"github.com/xkilldash9x/uiharness/internal/observability"
	"github.com/xkilldash9x/uiharness/internal/report"
)

func newCleanupCmd() *cobra.Command {
	var days int

	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete screenshots older than the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("days") {
				days = cfg.Artifacts().RetentionDays
			}
			if days < 0 {
				return fmt.Errorf("--days must not be negative, got %d", days)
			}

			logger := observability.GetLogger()
			reporter := failure.NewReporter(cfg.Artifacts(), report.NewRecorder(logger), logger)
			removed := reporter.CleanupOlderThan(days)
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d screenshot(s) older than %d day(s) from %s\n", removed, days, reporter.Dir())
			return nil
		},
	}

	cleanupCmd.Flags().IntVarP(&days, "days", "d", 0, "retention in days (default artifacts.retention_days)")
	return cleanupCmd
}
