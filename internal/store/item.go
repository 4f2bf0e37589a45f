package store

import (
	"fmt"
	"time"

	"snapflow/internal/services"
	"snapflow/internal/textutil"
)

// MediaKind distinguishes the two supported media types.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// ErrorRecord is one entry in an item's failure history.
type ErrorRecord struct {
	Stage   Stage     `json:"stage"`
	Attempt int       `json:"attempt"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Item is one media file's tracked processing record. The exported fields
// round-trip through the JSON sidecar; unknown fields in a sidecar written by
// a newer version are ignored on read.
type Item struct {
	ID           string    `json:"id"`
	User         string    `json:"user"`
	Kind         MediaKind `json:"kind"`
	OriginalName string    `json:"original_name"`
	ContentHash  string    `json:"content_hash"`
	Stage        Stage     `json:"stage"`

	Attempts      map[Stage]int `json:"attempts,omitempty"`
	LastError     string        `json:"last_error,omitempty"`
	ErrorHistory  []ErrorRecord `json:"error_history,omitempty"`
	NextAttemptAt time.Time     `json:"next_attempt_at,omitempty"`

	Analysis *services.Analysis `json:"analysis,omitempty"`
	Caption  string             `json:"caption,omitempty"`
	PostID   string             `json:"post_id,omitempty"`

	DiscoveredAt   time.Time  `json:"discovered_at"`
	StageEnteredAt time.Time  `json:"stage_entered_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`

	// Path is the current location of the media file. Derived from the
	// directory layout, never serialized.
	Path string `json:"-"`
}

// NewItemID derives the stable item identifier from owner, original filename,
// and content hash. The hash component keeps IDs unique when a user drops two
// files with the same name.
func NewItemID(user, originalName, contentHash string) string {
	short := contentHash
	if len(short) > 12 {
		short = short[:12]
	}
	return fmt.Sprintf("%s-%s-%s", textutil.SanitizeToken(user), textutil.SanitizeToken(originalName), short)
}

// AttemptCount returns the attempts consumed at the given stage.
func (i *Item) AttemptCount(stage Stage) int {
	if i.Attempts == nil {
		return 0
	}
	return i.Attempts[stage]
}

// IncrementAttempt records one consumed attempt at the given stage and
// returns the new count.
func (i *Item) IncrementAttempt(stage Stage) int {
	if i.Attempts == nil {
		i.Attempts = make(map[Stage]int, 4)
	}
	i.Attempts[stage]++
	return i.Attempts[stage]
}

// RecordError appends to the failure history and updates the last error.
func (i *Item) RecordError(stage Stage, attempt int, message string, at time.Time) {
	i.LastError = message
	i.ErrorHistory = append(i.ErrorHistory, ErrorRecord{
		Stage:   stage,
		Attempt: attempt,
		Message: message,
		At:      at.UTC(),
	})
}

// Ready reports whether the item's backoff gate has elapsed.
func (i *Item) Ready(now time.Time) bool {
	return !now.Before(i.NextAttemptAt)
}

// DedupKey is the (user, content hash) identity under which at most one item
// may exist at a time.
func (i *Item) DedupKey() string {
	return DedupKey(i.User, i.ContentHash)
}

// DedupKey builds the admission identity for a user and content hash.
func DedupKey(user, contentHash string) string {
	return user + "\x00" + contentHash
}
