// File: cmd/history.go
package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/shelfcheck/internal/observability"
)

// newHistoryCmd lists stored runs, or the results of one run with --run.
func newHistoryCmd(a *app) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Shows runs persisted to the result store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.Store.Enabled {
				return errors.New("the result store is disabled; set store.enabled and store.url")
			}
			ctx := cmd.Context()
			s, closeStore, err := a.deps.openStore(ctx, a.cfg.Store, observability.GetLogger())
			if err != nil {
				return err
			}
			defer closeStore()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			runFlag, _ := cmd.Flags().GetString("run")
			if runFlag != "" {
				id, err := uuid.Parse(runFlag)
				if err != nil {
					return fmt.Errorf("invalid run id %q: %w", runFlag, err)
				}
				results, err := s.ResultsByRunID(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "ID\tRESULT\tDURATION\tFAILED STEP\tKIND")
				for _, r := range results {
					status := "PASS"
					if !r.Passed {
						status = "FAIL"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ScenarioID, status, r.Duration, r.FailedStep, r.Kind)
				}
				return tw.Flush()
			}

			limit, _ := cmd.Flags().GetInt("limit")
			runs, err := s.RecentRuns(ctx, limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(tw, "RUN\tSTARTED\tDURATION\tTOTAL\tFAILED\tVERSION")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
					r.ID, r.Started.Local().Format(time.DateTime), r.Duration, r.Total, r.Failed, r.ToolVersion)
			}
			return tw.Flush()
		},
	}
	historyCmd.Flags().Int("limit", 10, "Number of runs to show")
	historyCmd.Flags().String("run", "", "Show the scenario results of this run id")
	return historyCmd
}
