package services_test

import (
	"context"
	"errors"
	"testing"

	"snapflow/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	err := services.Wrap(services.ErrPermanent, "publishing", "upload", "credentials rejected", nil)
	if !services.IsPermanent(err) {
		t.Fatalf("expected permanent classification, got %v", err)
	}
	if services.IsRateLimited(err) {
		t.Fatalf("permanent error must not classify as rate limited")
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "analyzing", "request", "", errors.New("connection reset"))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestClassifyAdapterErrorTimeout(t *testing.T) {
	err := services.ClassifyAdapterError("captioning", "request", context.DeadlineExceeded)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("deadline expiry should be transient, got %v", err)
	}
}

func TestClassifyAdapterErrorKeepsExistingMarker(t *testing.T) {
	tagged := services.Wrap(services.ErrRateLimited, "publishing", "create", "throttled", nil)
	err := services.ClassifyAdapterError("publishing", "create", tagged)
	if !services.IsRateLimited(err) {
		t.Fatalf("existing rate-limit marker must survive classification, got %v", err)
	}
}

func TestClassifyAdapterErrorUntaggedDefaultsTransient(t *testing.T) {
	err := services.ClassifyAdapterError("analyzing", "request", errors.New("boom"))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("untagged error should default to transient, got %v", err)
	}
}
