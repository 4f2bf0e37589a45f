// Package store persists work item state using the filesystem as the system
// of record.
//
// A work item is one media file moving through the pipeline. Its physical
// location encodes its stage: files under the per-user watch directories are
// discovered, files under queue/<user>/<stage>/ are in flight, and files under
// processed/ or failed/ are terminal. A JSON sidecar record next to the media
// file carries everything the location cannot: attempt counts, timestamps,
// analysis labels, the generated caption, and error history.
//
// Stage transitions are filesystem moves. On one filesystem a rename is
// atomic, so a crash mid-transition leaves the item in exactly one of the two
// stages. Across filesystems the move degrades to copy-verify-delete and
// Recover resolves the duplicate by keeping the verified destination copy.
//
// Only the scheduler loop mutates items (single-writer rule); everything the
// store holds in memory is derivable by re-listing the directories.
package store
