package daemon_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"snapflow/internal/api"
	"snapflow/internal/archive"
	"snapflow/internal/store"
	"snapflow/internal/testsupport"
)

func startedHarness(t *testing.T, arc *archive.Store, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	h := newHarness(t, arc, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(h.daemon.Stop)
	return h
}

func TestAPIHealthAndStatus(t *testing.T) {
	h := startedHarness(t, nil)
	client := api.NewClient(h.daemon.APIAddr(), "")

	ctx := context.Background()
	health, err := client.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Status != "ok" || !health.Running {
		t.Fatalf("health = %+v", health)
	}

	status, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running {
		t.Fatal("status should report running")
	}
	if status.LockFilePath == "" {
		t.Fatal("status missing lock path")
	}
}

func TestAPIQueueListing(t *testing.T) {
	h := startedHarness(t, nil)
	testsupport.WriteMedia(t, h.store, "alice", store.MediaImage, "a.jpg", []byte("a"))
	if _, err := h.scanner.ScanNow(context.Background()); err != nil {
		t.Fatalf("ScanNow: %v", err)
	}

	client := api.NewClient(h.daemon.APIAddr(), "")
	items, err := client.Queue(context.Background(), "", "alice")
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if items[0].OriginalName != "a.jpg" || items[0].User != "alice" {
		t.Fatalf("unexpected item %+v", items[0])
	}

	if _, err := client.Queue(context.Background(), "bogus", ""); err == nil {
		t.Fatal("expected error for unknown stage filter")
	}
}

func TestAPITokenEnforcement(t *testing.T) {
	h := startedHarness(t, nil, testsupport.WithAPIToken("secret"))

	ctx := context.Background()
	anon := api.NewClient(h.daemon.APIAddr(), "")
	if _, err := anon.Status(ctx); err == nil {
		t.Fatal("expected unauthorized without token")
	}

	// Health stays open for liveness probes.
	if _, err := anon.Health(ctx); err != nil {
		t.Fatalf("Health should not require auth: %v", err)
	}

	authed := api.NewClient(h.daemon.APIAddr(), "secret")
	if _, err := authed.Status(ctx); err != nil {
		t.Fatalf("Status with token: %v", err)
	}
}

func TestAPIHistory(t *testing.T) {
	arc, err := archive.Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("archive.Open: %v", err)
	}
	completed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	item := &store.Item{
		ID:           "alice-a-jpg-abc",
		User:         "alice",
		Kind:         store.MediaImage,
		OriginalName: "a.jpg",
		ContentHash:  "abc",
		Stage:        store.StageDone,
		PostID:       "p1",
		CompletedAt:  &completed,
	}
	if err := arc.Record(context.Background(), item); err != nil {
		t.Fatalf("Record: %v", err)
	}

	h := startedHarness(t, arc)
	client := api.NewClient(h.daemon.APIAddr(), "")
	entries, err := client.History(context.Background(), "alice", 5)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 1 || entries[0].PostID != "p1" {
		t.Fatalf("entries = %+v", entries)
	}

	// No archive wired: the endpoint reports unavailable.
	bare := startedHarness(t, nil)
	bareClient := api.NewClient(bare.daemon.APIAddr(), "")
	if _, err := bareClient.History(context.Background(), "alice", 5); err == nil {
		t.Fatal("expected history to fail without an archive")
	}
}
