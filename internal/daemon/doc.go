// Package daemon coordinates the long-running process: single-instance
// locking, the scheduler lifecycle, and the local HTTP API used by the CLI.
package daemon
