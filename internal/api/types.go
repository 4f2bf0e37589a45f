package api

import (
	"time"

	"snapflow/internal/archive"
	"snapflow/internal/store"
)

// DaemonStatus is the /api/status payload.
type DaemonStatus struct {
	Running      bool             `json:"running"`
	PID          int              `json:"pid"`
	QueueCounts  map[string]int   `json:"queue_counts"`
	Counters     map[string]int64 `json:"counters"`
	Gauges       map[string]int64 `json:"gauges"`
	LockFilePath string           `json:"lock_file_path"`
	ArchivePath  string           `json:"archive_path,omitempty"`
}

// QueueItem is the wire form of one work item.
type QueueItem struct {
	ID            string     `json:"id"`
	User          string     `json:"user"`
	Kind          string     `json:"kind"`
	OriginalName  string     `json:"original_name"`
	Stage         string     `json:"stage"`
	Caption       string     `json:"caption,omitempty"`
	PostID        string     `json:"post_id,omitempty"`
	Attempts      int        `json:"attempts"`
	LastError     string     `json:"last_error,omitempty"`
	DiscoveredAt  time.Time  `json:"discovered_at"`
	NextAttemptAt time.Time  `json:"next_attempt_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// QueueListResponse is the /api/queue payload.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// HistoryEntry is the wire form of one archived outcome.
type HistoryEntry struct {
	ItemID       string    `json:"item_id"`
	User         string    `json:"user"`
	Kind         string    `json:"kind"`
	OriginalName string    `json:"original_name"`
	Outcome      string    `json:"outcome"`
	PostID       string    `json:"post_id,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	Attempts     int       `json:"attempts"`
	CompletedAt  time.Time `json:"completed_at"`
}

// HistoryResponse is the /api/history payload.
type HistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
}

// HealthResponse is the /api/health payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Running bool   `json:"running"`
}

// ErrorResponse carries an API error message.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FromItem converts a store item into its wire form.
func FromItem(item *store.Item) QueueItem {
	return QueueItem{
		ID:            item.ID,
		User:          item.User,
		Kind:          string(item.Kind),
		OriginalName:  item.OriginalName,
		Stage:         string(item.Stage),
		Caption:       item.Caption,
		PostID:        item.PostID,
		Attempts:      item.AttemptCount(item.Stage),
		LastError:     item.LastError,
		DiscoveredAt:  item.DiscoveredAt,
		NextAttemptAt: item.NextAttemptAt,
		CompletedAt:   item.CompletedAt,
	}
}

// FromItems converts a slice of store items.
func FromItems(items []*store.Item) []QueueItem {
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		out = append(out, FromItem(item))
	}
	return out
}

// FromArchiveEntry converts an archive row into its wire form.
func FromArchiveEntry(e archive.Entry) HistoryEntry {
	return HistoryEntry{
		ItemID:       e.ItemID,
		User:         e.User,
		Kind:         e.Kind,
		OriginalName: e.OriginalName,
		Outcome:      e.Outcome,
		PostID:       e.PostID,
		LastError:    e.LastError,
		Attempts:     e.Attempts,
		CompletedAt:  e.CompletedAt,
	}
}

// FromArchiveEntries converts a slice of archive rows.
func FromArchiveEntries(entries []archive.Entry) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, FromArchiveEntry(e))
	}
	return out
}
