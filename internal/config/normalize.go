package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScanner()
	c.normalizeRateLimit()
	c.normalizeAdapters()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WatchDir, err = expandPath(c.Paths.WatchDir); err != nil {
		return fmt.Errorf("paths.watch_dir: %w", err)
	}
	if c.Paths.QueueDir, err = expandPath(c.Paths.QueueDir); err != nil {
		return fmt.Errorf("paths.queue_dir: %w", err)
	}
	if c.Paths.ProcessedDir, err = expandPath(c.Paths.ProcessedDir); err != nil {
		return fmt.Errorf("paths.processed_dir: %w", err)
	}
	if c.Paths.FailedDir, err = expandPath(c.Paths.FailedDir); err != nil {
		return fmt.Errorf("paths.failed_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Archive.Path, err = expandPath(c.Archive.Path); err != nil {
		return fmt.Errorf("archive.path: %w", err)
	}
	for i := range c.Users {
		c.Users[i].Name = strings.TrimSpace(c.Users[i].Name)
		if c.Users[i].WatchDir != "" {
			if c.Users[i].WatchDir, err = expandPath(c.Users[i].WatchDir); err != nil {
				return fmt.Errorf("users[%d].watch_dir: %w", i, err)
			}
		}
	}
	return nil
}

func (c *Config) normalizeScanner() {
	normalized := make([]string, 0, len(c.Scanner.ImageExtensions))
	for _, ext := range c.Scanner.ImageExtensions {
		normalized = append(normalized, normalizeExtension(ext))
	}
	c.Scanner.ImageExtensions = normalized

	normalized = make([]string, 0, len(c.Scanner.VideoExtensions))
	for _, ext := range c.Scanner.VideoExtensions {
		normalized = append(normalized, normalizeExtension(ext))
	}
	c.Scanner.VideoExtensions = normalized

	c.Scanner.DuplicatePolicy = strings.ToLower(strings.TrimSpace(c.Scanner.DuplicatePolicy))
	if c.Scanner.DuplicatePolicy == "" {
		c.Scanner.DuplicatePolicy = defaultDuplicatePolicy
	}
}

func (c *Config) normalizeRateLimit() {
	c.RateLimit.Scope = strings.ToLower(strings.TrimSpace(c.RateLimit.Scope))
	if c.RateLimit.Scope == "" {
		c.RateLimit.Scope = defaultRateLimitScope
	}
}

func (c *Config) normalizeAdapters() {
	c.Analysis.BaseURL = strings.TrimRight(strings.TrimSpace(c.Analysis.BaseURL), "/")
	c.Caption.BaseURL = strings.TrimRight(strings.TrimSpace(c.Caption.BaseURL), "/")
	c.Publish.BaseURL = strings.TrimRight(strings.TrimSpace(c.Publish.BaseURL), "/")
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
