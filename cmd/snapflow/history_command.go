package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var userFilter string
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show archived publish outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			entries, err := client.History(cmd.Context(), userFilter, limit)
			if err != nil {
				return wrapAPIError(err)
			}
			if jsonOutput {
				return writeJSON(cmd, map[string]any{"entries": entries})
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No archived outcomes")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Completed", "User", "File", "Outcome", "Post", "Error"},
				buildHistoryRows(entries),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&userFilter, "user", "", "Only show outcomes for this user")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of entries")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine readable output")
	return cmd
}
