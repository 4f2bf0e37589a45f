package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"snapflow/internal/api"
)

const displayTimeLayout = "2006-01-02 15:04"

func buildQueueListRows(items []api.QueueItem) [][]string {
	sorted := make([]api.QueueItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].User != sorted[j].User {
			return sorted[i].User < sorted[j].User
		}
		return sorted[i].DiscoveredAt.Before(sorted[j].DiscoveredAt)
	})

	rows := make([][]string, 0, len(sorted))
	for _, item := range sorted {
		rows = append(rows, []string{
			item.User,
			item.OriginalName,
			item.Kind,
			formatStageLabel(item.Stage),
			fmt.Sprintf("%d", item.Attempts),
			truncateCell(item.LastError, 40),
			item.PostID,
		})
	}
	return rows
}

func buildHistoryRows(entries []api.HistoryEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			formatDisplayTime(e.CompletedAt),
			e.User,
			e.OriginalName,
			formatStageLabel(e.Outcome),
			e.PostID,
			truncateCell(e.LastError, 40),
		})
	}
	return rows
}

func formatStageLabel(stage string) string {
	stage = strings.TrimSpace(stage)
	if stage == "" {
		return ""
	}
	return strings.ToUpper(stage[:1]) + stage[1:]
}

func formatDisplayTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(displayTimeLayout)
}

func truncateCell(value string, max int) string {
	value = strings.TrimSpace(value)
	if max <= 3 || len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}
