package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Duplicate drop policies for the scanner.
const (
	DuplicateKeep   = "keep"
	DuplicateRemove = "remove"
)

// Paths contains directory and bind address configuration. The four media
// roots encode work item state physically: watch (discovered), queue
// (in-flight per stage), processed (terminal success), failed (terminal
// failure).
type Paths struct {
	WatchDir     string `toml:"watch_dir"`
	QueueDir     string `toml:"queue_dir"`
	ProcessedDir string `toml:"processed_dir"`
	FailedDir    string `toml:"failed_dir"`
	LogDir       string `toml:"log_dir"`
	APIBind      string `toml:"api_bind"`
	APIToken     string `toml:"api_token"`
}

// User registers one watched account. Immutable after load.
type User struct {
	Name         string `toml:"name"`
	CaptionStyle string `toml:"caption_style"`
	WatchDir     string `toml:"watch_dir"`
}

// Scanner contains file discovery settings.
type Scanner struct {
	IntervalMinutes   int      `toml:"interval_minutes"`
	QuiescenceSeconds int      `toml:"quiescence_seconds"`
	ImageExtensions   []string `toml:"image_extensions"`
	VideoExtensions   []string `toml:"video_extensions"`
	ImageMaxSizeMB    int      `toml:"image_max_size_mb"`
	VideoMaxSizeMB    int      `toml:"video_max_size_mb"`
	DuplicatePolicy   string   `toml:"duplicate_policy"` // "keep" or "remove"
}

// Pipeline contains scheduler timing and retry settings. The per-stage
// attempt caps are optional; zero means the shared max_attempts applies.
type Pipeline struct {
	TickSeconds           int `toml:"tick_seconds"`
	Concurrency           int `toml:"concurrency"`
	MaxAttempts           int `toml:"max_attempts"`
	MaxAttemptsAnalyzing  int `toml:"max_attempts_analyzing"`
	MaxAttemptsCaptioning int `toml:"max_attempts_captioning"`
	MaxAttemptsPublishing int `toml:"max_attempts_publishing"`
	BackoffBaseSeconds    int `toml:"backoff_base_seconds"`
	BackoffMaxSeconds     int `toml:"backoff_max_seconds"`
	AdapterTimeout        int `toml:"adapter_timeout_seconds"`
	RetentionDays         int `toml:"retention_days"`
}

// MaxAttemptsFor returns the attempt cap for the named stage, falling back
// to the shared max_attempts when no per-stage override is set.
func (p Pipeline) MaxAttemptsFor(stage string) int {
	var override int
	switch stage {
	case "analyzing":
		override = p.MaxAttemptsAnalyzing
	case "captioning":
		override = p.MaxAttemptsCaptioning
	case "publishing":
		override = p.MaxAttemptsPublishing
	}
	if override > 0 {
		return override
	}
	return p.MaxAttempts
}

// RateLimit controls minimum spacing between successful publishes.
type RateLimit struct {
	MinDelayMinutes int    `toml:"min_delay_minutes"`
	Scope           string `toml:"scope"` // "user" or "global"
}

// Analysis contains the content analysis service connection.
type Analysis struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Caption contains the caption generation service connection and styling.
type Caption struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	Temperature    float64 `toml:"temperature"`
	MaxLength      int     `toml:"max_length"`
	UseHashtags    bool    `toml:"use_hashtags"`
	MaxHashtags    int     `toml:"max_hashtags"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// Publish contains the platform publishing credentials and endpoint.
type Publish struct {
	AccountID      string `toml:"account_id"`
	AccessToken    string `toml:"access_token"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Published      bool   `toml:"published"`
	Failures       bool   `toml:"failures"`
	QueueDrained   bool   `toml:"queue_drained"`
}

// Archive contains the terminal-outcome index settings.
type Archive struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Snapflow.
//
// Configuration sections by subsystem:
//   - Paths: directory roots and API bind address
//   - Users: registered accounts with per-user overrides
//   - Scanner: discovery interval, quiescence, extensions, size limits
//   - Pipeline: tick interval, concurrency cap, retries, backoff, retention
//   - RateLimit: minimum publish spacing and scope granularity
//   - Analysis / Caption / Publish: external adapter connections
//   - Notifications: ntfy push notification settings
//   - Archive: sqlite outcome index
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Users         []User        `toml:"users"`
	Scanner       Scanner       `toml:"scanner"`
	Pipeline      Pipeline      `toml:"pipeline"`
	RateLimit     RateLimit     `toml:"rate_limit"`
	Analysis      Analysis      `toml:"analysis"`
	Caption       Caption       `toml:"caption"`
	Publish       Publish       `toml:"publish"`
	Notifications Notifications `toml:"notifications"`
	Archive       Archive       `toml:"archive"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/snapflow/config.toml")
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("snapflow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// CreateSample writes the embedded sample configuration to path.
func CreateSample(path string) error {
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// ExpandPath resolves a leading ~ and returns an absolute, cleaned path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

// EnsureDirectories creates the directory roots the daemon needs at runtime.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WatchDir, c.Paths.QueueDir, c.Paths.ProcessedDir, c.Paths.FailedDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// UserNames returns the registered user names in configuration order.
func (c *Config) UserNames() []string {
	names := make([]string, 0, len(c.Users))
	for _, u := range c.Users {
		names = append(names, u.Name)
	}
	return names
}

// UserByName looks up a registered user.
func (c *Config) UserByName(name string) (User, bool) {
	for _, u := range c.Users {
		if u.Name == name {
			return u, true
		}
	}
	return User{}, false
}

// UserWatchDir returns the watch directory for one user, honoring a per-user
// override when present.
func (c *Config) UserWatchDir(name string) string {
	if u, ok := c.UserByName(name); ok && strings.TrimSpace(u.WatchDir) != "" {
		return u.WatchDir
	}
	return filepath.Join(c.Paths.WatchDir, name)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
