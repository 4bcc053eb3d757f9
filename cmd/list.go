// File: cmd/list.go
package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/shelfcheck/internal/scenario"
)

func newListCmd(_ *app) *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Lists the scenarios a run would execute",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			suiteFlag, _ := cmd.Flags().GetString("suite")
			only, _ := cmd.Flags().GetString("only")
			suite, err := scenario.ParseSuite(suiteFlag)
			if err != nil {
				return err
			}
			selected, err := scenario.DefaultCatalog().Filter(suite, only)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSUITE\tLOCK\tTITLE")
			for _, sc := range selected {
				lock := sc.LockKey
				if lock == "" {
					lock = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", sc.ID, sc.Suite, lock, sc.Title)
			}
			return tw.Flush()
		},
	}
	listCmd.Flags().StringP("suite", "s", "all", "Suite to list: ui, api or all")
	listCmd.Flags().String("only", "", "List only scenarios whose id matches this glob")
	return listCmd
}
