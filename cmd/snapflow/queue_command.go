package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the work queue",
	}
	queueCmd.AddCommand(newQueueListCommand(ctx))
	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var stageFilter string
	var userFilter string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work items",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			items, err := client.Queue(cmd.Context(), stageFilter, userFilter)
			if err != nil {
				return wrapAPIError(err)
			}
			if jsonOutput {
				return writeJSON(cmd, map[string]any{"items": items})
			}

			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No items found")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"User", "File", "Kind", "Stage", "Attempts", "Error", "Post"},
				buildQueueListRows(items),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&stageFilter, "stage", "", "Only show items in this stage")
	cmd.Flags().StringVar(&userFilter, "user", "", "Only show items for this user")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine readable output")
	return cmd
}
