package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestLoadParsesUsersAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
watch_dir = "` + dir + `/watch"
queue_dir = "` + dir + `/queue"
processed_dir = "` + dir + `/processed"
failed_dir = "` + dir + `/failed"
log_dir = "` + dir + `/logs"

[[users]]
name = "alice"
caption_style = "engaging"

[[users]]
name = "bob"
caption_style = "professional"
watch_dir = "` + dir + `/drop/bob"

[scanner]
interval_minutes = 5
image_extensions = ["JPG", "png"]

[rate_limit]
min_delay_minutes = 15
scope = "global"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatalf("expected config to resolve, exists=%v path=%q", exists, resolved)
	}
	if len(cfg.Users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(cfg.Users))
	}
	if cfg.Scanner.IntervalMinutes != 5 {
		t.Fatalf("scan interval override lost: %d", cfg.Scanner.IntervalMinutes)
	}
	if cfg.RateLimit.Scope != "global" {
		t.Fatalf("rate limit scope override lost: %q", cfg.RateLimit.Scope)
	}
	// Extensions normalized to lowercase dotted form.
	if cfg.Scanner.ImageExtensions[0] != ".jpg" || cfg.Scanner.ImageExtensions[1] != ".png" {
		t.Fatalf("extensions not normalized: %v", cfg.Scanner.ImageExtensions)
	}
	// Per-user watch dir override respected, default derived otherwise.
	if got := cfg.UserWatchDir("bob"); got != filepath.Join(dir, "drop", "bob") {
		t.Fatalf("bob watch dir: %q", got)
	}
	if got := cfg.UserWatchDir("alice"); got != filepath.Join(cfg.Paths.WatchDir, "alice") {
		t.Fatalf("alice watch dir: %q", got)
	}
}

func TestValidateRejectsDuplicateUsers(t *testing.T) {
	cfg := Default()
	cfg.Users = []User{{Name: "alice"}, {Name: "alice"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected duplicate user error")
	}
}

func TestValidateRejectsBadDuplicatePolicy(t *testing.T) {
	cfg := Default()
	cfg.Scanner.DuplicatePolicy = "archive"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected duplicate_policy error")
	}
}

func TestValidateRejectsBackoffInversion(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.BackoffBaseSeconds = 600
	cfg.Pipeline.BackoffMaxSeconds = 60
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected backoff range error")
	}
}

func TestMaxAttemptsForFallsBackToSharedCap(t *testing.T) {
	p := Pipeline{MaxAttempts: 3, MaxAttemptsPublishing: 5}
	if got := p.MaxAttemptsFor("publishing"); got != 5 {
		t.Fatalf("publishing cap = %d, want 5", got)
	}
	if got := p.MaxAttemptsFor("analyzing"); got != 3 {
		t.Fatalf("analyzing cap = %d, want shared 3", got)
	}
	if got := p.MaxAttemptsFor("captioning"); got != 3 {
		t.Fatalf("captioning cap = %d, want shared 3", got)
	}
}

func TestValidateRejectsNegativeStageCap(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.MaxAttemptsCaptioning = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected negative stage cap error")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")
	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("file should not exist")
	}
	if cfg.Pipeline.MaxAttempts != defaultMaxAttempts {
		t.Fatalf("defaults not applied: %d", cfg.Pipeline.MaxAttempts)
	}
}
