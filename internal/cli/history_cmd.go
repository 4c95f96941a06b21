package cli

import (
	"fmt"

	"meal-planner/internal/app"
	"meal-planner/internal/cli/formatter"

	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app.App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent auto-fill runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := a.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatHistory(runs))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")

	cmd.AddCommand(newHistoryUsageCmd(a), newHistoryCleanupCmd(a))
	return cmd
}

func newHistoryUsageCmd(a *app.App) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Summarize auto-fill runs per day",
		RunE: func(cmd *cobra.Command, args []string) error {
			usage, err := a.Usage(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatUsage(usage))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "Number of days to include")
	return cmd
}

func newHistoryCleanupCmd(a *app.App) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete runs older than --days",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.CleanupHistory(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d runs older than %d days\n", n, days)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 90, "Keep runs newer than this many days")
	return cmd
}
