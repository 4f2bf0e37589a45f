// Package pipeline drives work items through the stage machine: discovered
// media is analyzed, captioned, and published on a fixed scheduler tick. The
// manager is the single writer of stage transitions; adapters are pure
// request/response collaborators with no store access of their own. All
// timing flows through an injectable clock so the scheduler is deterministic
// under test.
package pipeline
