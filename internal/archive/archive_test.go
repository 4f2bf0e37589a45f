package archive_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"snapflow/internal/archive"
	"snapflow/internal/store"
)

func terminalItem(id, user, outcome string, completed time.Time) *store.Item {
	done := completed
	return &store.Item{
		ID:           id,
		User:         user,
		Kind:         store.MediaImage,
		OriginalName: id + ".jpg",
		ContentHash:  "hash-" + id,
		Stage:        store.Stage(outcome),
		PostID:       "post-" + id,
		Caption:      "caption " + id,
		Attempts:     map[store.Stage]int{store.StageAnalyzing: 1},
		DiscoveredAt: completed.Add(-time.Hour),
		CompletedAt:  &done,
	}
}

func TestRecordAndHistory(t *testing.T) {
	s, err := archive.Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if err := s.Record(ctx, terminalItem("a", "alice", "done", base)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Record(ctx, terminalItem("b", "alice", "failed", base.Add(time.Hour))); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Record(ctx, terminalItem("c", "bob", "done", base.Add(2*time.Hour))); err != nil {
		t.Fatalf("Record: %v", err)
	}

	all, err := s.History(ctx, "", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("entries = %d, want 3", len(all))
	}
	if all[0].ItemID != "c" {
		t.Fatalf("newest first expected, got %s", all[0].ItemID)
	}

	alice, err := s.History(ctx, "alice", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(alice) != 2 {
		t.Fatalf("alice entries = %d, want 2", len(alice))
	}
	for _, e := range alice {
		if e.User != "alice" {
			t.Fatalf("user filter leaked: %+v", e)
		}
	}
}

func TestRecordIsIdempotent(t *testing.T) {
	s, err := archive.Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ctx := context.Background()
	item := terminalItem("a", "alice", "done", time.Now().UTC())
	if err := s.Record(ctx, item); err != nil {
		t.Fatal(err)
	}
	item.PostID = "post-updated"
	if err := s.Record(ctx, item); err != nil {
		t.Fatal(err)
	}

	entries, err := s.History(ctx, "alice", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("replayed record duplicated history: %d rows", len(entries))
	}
	if entries[0].PostID != "post-updated" {
		t.Fatalf("replay must update the row, got %q", entries[0].PostID)
	}
}

func TestRecordRejectsNonTerminal(t *testing.T) {
	s, err := archive.Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	item := terminalItem("a", "alice", "analyzing", time.Now().UTC())
	if err := s.Record(context.Background(), item); err == nil {
		t.Fatal("non-terminal item must be rejected")
	}
}

func TestCountByOutcome(t *testing.T) {
	s, err := archive.Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	for _, spec := range []struct{ id, outcome string }{
		{"a", "done"}, {"b", "done"}, {"c", "failed"},
	} {
		if err := s.Record(ctx, terminalItem(spec.id, "alice", spec.outcome, now)); err != nil {
			t.Fatal(err)
		}
	}

	counts, err := s.CountByOutcome(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts["done"] != 2 || counts["failed"] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestOpenExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")
	s, err := archive.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Record(context.Background(), terminalItem("a", "alice", "done", time.Now().UTC())); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := archive.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	entries, err := reopened.History(context.Background(), "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("history lost across reopen: %d", len(entries))
	}
}
