// Package config loads, validates, and normalizes the TOML configuration
// for the Snapflow daemon and CLI.
//
// Configuration is read once at process start and treated as immutable
// afterwards; a restart is required to pick up changes.
package config
