package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return wrapAPIError(err)
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			running := statusWarn
			detail := "Not running"
			if status.Running {
				running = statusOK
				detail = fmt.Sprintf("Running (pid %d)", status.PID)
			}
			fmt.Fprintln(out, renderStatusLine("Snapflow", running, detail, colorize))
			fmt.Fprintln(out, renderStatusLine("Lock file", statusInfo, status.LockFilePath, colorize))
			if status.ArchivePath != "" {
				fmt.Fprintln(out, renderStatusLine("Archive", statusInfo, status.ArchivePath, colorize))
			}
			fmt.Fprintln(out)

			if rows := buildStageRows(status.QueueCounts); len(rows) > 0 {
				fmt.Fprintln(out, renderTable(
					[]string{"Stage", "Items"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
			} else {
				fmt.Fprintln(out, "Queue is empty")
			}

			if rows := buildCounterRows(status.Counters); len(rows) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderTable(
					[]string{"Counter", "Total"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine readable output")
	return cmd
}

func buildStageRows(counts map[string]int) [][]string {
	keys := make([]string, 0, len(counts))
	for key, n := range counts {
		if n == 0 {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{key, fmt.Sprintf("%d", counts[key])})
	}
	return rows
}

func buildCounterRows(counters map[string]int64) [][]string {
	keys := make([]string, 0, len(counters))
	for key := range counters {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{key, fmt.Sprintf("%d", counters[key])})
	}
	return rows
}
