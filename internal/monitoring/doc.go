// Package monitoring is the pipeline's observation surface: a process-local
// counter registry backing the status API, and push notifications over ntfy
// for the events an unattended operator cares about. Both are fire-and-forget
// from the scheduler's point of view; a broken notification channel never
// blocks or fails stage advancement.
package monitoring
