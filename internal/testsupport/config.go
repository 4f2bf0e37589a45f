// Package testsupport provides shared fixtures for package tests: seeded
// configurations, store construction over temp directories, media files,
// stub adapters, and a manual clock.
package testsupport

import (
	"path/filepath"
	"testing"

	"snapflow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// One user "alice" is registered by default; timing values are tuned so
// tests never wait on real backoff.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WatchDir = filepath.Join(base, "watch")
	cfg.Paths.QueueDir = filepath.Join(base, "queue")
	cfg.Paths.ProcessedDir = filepath.Join(base, "processed")
	cfg.Paths.FailedDir = filepath.Join(base, "failed")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Users = []config.User{{Name: "alice", CaptionStyle: "engaging"}}
	cfg.Scanner.QuiescenceSeconds = 0
	cfg.Scanner.IntervalMinutes = 0
	cfg.Archive.Enabled = false
	cfg.Archive.Path = filepath.Join(base, "archive.db")
	cfg.Notifications.NtfyTopic = ""

	for _, opt := range opts {
		opt(&cfg)
	}
	// The daemon's entrypoint prepares these before anything runs; fixtures
	// that skip it still need the log dir for the lock file.
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("prepare config directories: %v", err)
	}
	return &cfg
}

// WithUsers replaces the registered users on the test config.
func WithUsers(users ...config.User) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Users = users
	}
}

// WithMaxAttempts overrides the shared attempt cap.
func WithMaxAttempts(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.MaxAttempts = n
	}
}

// WithAPIToken requires a bearer token on the daemon API.
func WithAPIToken(token string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Paths.APIToken = token
	}
}

// WithRateLimit overrides the publish spacing and scope.
func WithRateLimit(minutes int, scope string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.RateLimit.MinDelayMinutes = minutes
		cfg.RateLimit.Scope = scope
	}
}
