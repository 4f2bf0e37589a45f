package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks failures worth retrying: network timeouts, 5xx
	// responses, temporary service unavailability.
	ErrTransient = errors.New("transient failure")
	// ErrPermanent marks failures that will not succeed on retry: invalid
	// credentials, content rejected by platform policy, corrupt media.
	ErrPermanent = errors.New("permanent failure")
	// ErrRateLimited marks publish attempts the platform itself throttled.
	ErrRateLimited = errors.New("rate limited")
	// ErrConfiguration marks adapter misconfiguration (missing API key,
	// malformed endpoint). Treated as permanent.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsPermanent reports whether err should fail the item immediately
// regardless of remaining attempts.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent) || errors.Is(err, ErrConfiguration)
}

// IsRateLimited reports whether the platform throttled the request.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// ClassifyAdapterError normalizes raw adapter errors: context deadline
// expiration becomes a transient timeout, untagged errors default to
// transient so flaky collaborators get the benefit of the retry budget.
func ClassifyAdapterError(stage, operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPermanent) || errors.Is(err, ErrConfiguration) || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(ErrTransient, stage, operation, "timed out", err)
	}
	return Wrap(ErrTransient, stage, operation, "", err)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
