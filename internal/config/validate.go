package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateUsers(); err != nil {
		return err
	}
	if err := c.validateScanner(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateRateLimit(); err != nil {
		return err
	}
	if err := c.validateCaption(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateUsers() error {
	seen := make(map[string]struct{}, len(c.Users))
	for i, u := range c.Users {
		if strings.TrimSpace(u.Name) == "" {
			return fmt.Errorf("users[%d].name must be set", i)
		}
		if _, dup := seen[u.Name]; dup {
			return fmt.Errorf("users: duplicate name %q", u.Name)
		}
		seen[u.Name] = struct{}{}
	}
	return nil
}

func (c *Config) validateScanner() error {
	if err := ensurePositiveMap(map[string]int{
		"scanner.interval_minutes":   c.Scanner.IntervalMinutes,
		"scanner.quiescence_seconds": c.Scanner.QuiescenceSeconds,
		"scanner.image_max_size_mb":  c.Scanner.ImageMaxSizeMB,
		"scanner.video_max_size_mb":  c.Scanner.VideoMaxSizeMB,
	}); err != nil {
		return err
	}
	switch c.Scanner.DuplicatePolicy {
	case DuplicateKeep, DuplicateRemove:
	default:
		return fmt.Errorf("scanner.duplicate_policy must be %q or %q, got %q", DuplicateKeep, DuplicateRemove, c.Scanner.DuplicatePolicy)
	}
	if len(c.Scanner.ImageExtensions) == 0 && len(c.Scanner.VideoExtensions) == 0 {
		return errors.New("scanner: at least one image or video extension must be configured")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if err := ensurePositiveMap(map[string]int{
		"pipeline.tick_seconds":            c.Pipeline.TickSeconds,
		"pipeline.concurrency":             c.Pipeline.Concurrency,
		"pipeline.max_attempts":            c.Pipeline.MaxAttempts,
		"pipeline.backoff_base_seconds":    c.Pipeline.BackoffBaseSeconds,
		"pipeline.backoff_max_seconds":     c.Pipeline.BackoffMaxSeconds,
		"pipeline.adapter_timeout_seconds": c.Pipeline.AdapterTimeout,
		"pipeline.retention_days":          c.Pipeline.RetentionDays,
	}); err != nil {
		return err
	}
	if c.Pipeline.BackoffMaxSeconds < c.Pipeline.BackoffBaseSeconds {
		return errors.New("pipeline.backoff_max_seconds must be >= pipeline.backoff_base_seconds")
	}
	for key, value := range map[string]int{
		"pipeline.max_attempts_analyzing":  c.Pipeline.MaxAttemptsAnalyzing,
		"pipeline.max_attempts_captioning": c.Pipeline.MaxAttemptsCaptioning,
		"pipeline.max_attempts_publishing": c.Pipeline.MaxAttemptsPublishing,
	} {
		if value < 0 {
			return fmt.Errorf("%s must not be negative", key)
		}
	}
	return nil
}

func (c *Config) validateRateLimit() error {
	if c.RateLimit.MinDelayMinutes <= 0 {
		return errors.New("rate_limit.min_delay_minutes must be positive")
	}
	switch c.RateLimit.Scope {
	case "user", "global":
	default:
		return fmt.Errorf("rate_limit.scope must be %q or %q, got %q", "user", "global", c.RateLimit.Scope)
	}
	return nil
}

func (c *Config) validateCaption() error {
	if c.Caption.MaxLength <= 0 {
		return errors.New("caption.max_length must be positive")
	}
	if c.Caption.MaxHashtags < 0 {
		return errors.New("caption.max_hashtags must not be negative")
	}
	if c.Caption.Temperature < 0 || c.Caption.Temperature > 2 {
		return errors.New("caption.temperature must be between 0 and 2")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
