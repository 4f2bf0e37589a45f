// Package services defines the shared error taxonomy and context plumbing for
// the external adapters the pipeline calls (analysis, captioning, publishing).
//
// Adapter errors are wrapped with sentinel markers so the scheduler can decide
// between retry, immediate failure, and rate-limit cooldown without inspecting
// adapter internals.
package services
