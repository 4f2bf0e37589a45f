package scanner_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"snapflow/internal/config"
	"snapflow/internal/logging"
	"snapflow/internal/scanner"
	"snapflow/internal/store"
)

func newFixture(t *testing.T, mutate func(*config.Config)) (*config.Config, *store.Store) {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WatchDir = filepath.Join(base, "watch")
	cfg.Paths.QueueDir = filepath.Join(base, "queue")
	cfg.Paths.ProcessedDir = filepath.Join(base, "processed")
	cfg.Paths.FailedDir = filepath.Join(base, "failed")
	cfg.Users = []config.User{{Name: "alice", CaptionStyle: "engaging"}}
	cfg.Scanner.QuiescenceSeconds = 0
	if mutate != nil {
		mutate(&cfg)
	}

	layout := store.Layout{
		WatchDir:     cfg.Paths.WatchDir,
		QueueDir:     cfg.Paths.QueueDir,
		ProcessedDir: cfg.Paths.ProcessedDir,
		FailedDir:    cfg.Paths.FailedDir,
	}
	st := store.New(layout, cfg.UserNames(), logging.NewNop())
	if err := st.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return &cfg, st
}

func writeWatchFile(t *testing.T, st *store.Store, kind store.MediaKind, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(st.Layout().WatchKindDir("alice", kind), name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestScanAdmitsMatchingFiles(t *testing.T) {
	cfg, st := newFixture(t, nil)
	writeWatchFile(t, st, store.MediaImage, "sunset.jpg", []byte("jpeg"))
	writeWatchFile(t, st, store.MediaVideo, "clip.mp4", []byte("mpeg"))
	writeWatchFile(t, st, store.MediaImage, "notes.txt", []byte("not media"))

	s := scanner.New(cfg, st, logging.NewNop())
	report, err := s.ScanNow(context.Background())
	if err != nil {
		t.Fatalf("ScanNow: %v", err)
	}
	if report.Admitted != 2 {
		t.Fatalf("admitted = %d, want 2", report.Admitted)
	}

	items, err := st.ListStage(store.StageDiscovered)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("discovered items = %d, want 2", len(items))
	}
}

func TestScanIsIdempotent(t *testing.T) {
	cfg, st := newFixture(t, nil)
	writeWatchFile(t, st, store.MediaImage, "a.jpg", []byte("one"))

	s := scanner.New(cfg, st, logging.NewNop())
	if report, _ := s.ScanNow(context.Background()); report.Admitted != 1 {
		t.Fatalf("first pass admitted %d", report.Admitted)
	}
	report, err := s.ScanNow(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Admitted != 0 || report.Duplicates != 0 {
		t.Fatalf("second pass should see nothing new: %+v", report)
	}
}

func TestScanRespectsQuiescenceWindow(t *testing.T) {
	cfg, st := newFixture(t, func(c *config.Config) {
		c.Scanner.QuiescenceSeconds = 5
	})
	writeWatchFile(t, st, store.MediaImage, "incoming.jpg", []byte("partial"))

	current := time.Now()
	s := scanner.New(cfg, st, logging.NewNop(), scanner.WithNow(func() time.Time { return current }))

	report, err := s.ScanNow(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Admitted != 0 || report.Pending != 1 {
		t.Fatalf("file inside quiescence window must wait: %+v", report)
	}

	current = current.Add(10 * time.Second)
	report, err = s.ScanNow(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Admitted != 1 {
		t.Fatalf("settled file not admitted: %+v", report)
	}
}

func TestScanRoutesOversizedToFailed(t *testing.T) {
	cfg, st := newFixture(t, func(c *config.Config) {
		c.Scanner.ImageMaxSizeMB = 1
	})
	big := make([]byte, 2*1024*1024)
	writeWatchFile(t, st, store.MediaImage, "huge.jpg", big)

	s := scanner.New(cfg, st, logging.NewNop())
	report, err := s.ScanNow(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Oversized != 1 || report.Admitted != 0 {
		t.Fatalf("oversized routing wrong: %+v", report)
	}

	failed, err := st.ListStage(store.StageFailed)
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 {
		t.Fatalf("failed items = %d, want 1", len(failed))
	}
	if failed[0].AttemptCount(store.StageFailed) != 0 {
		t.Fatal("oversized admission must not consume attempts")
	}
}

func TestScanDuplicatePolicyKeep(t *testing.T) {
	cfg, st := newFixture(t, nil)
	writeWatchFile(t, st, store.MediaImage, "a.jpg", []byte("same"))
	dup := writeWatchFile(t, st, store.MediaImage, "a-copy.jpg", []byte("same"))

	s := scanner.New(cfg, st, logging.NewNop())
	report, err := s.ScanNow(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Admitted != 1 || report.Duplicates != 1 {
		t.Fatalf("keep policy: %+v", report)
	}
	if _, err := os.Stat(dup); err != nil {
		t.Fatalf("keep policy must leave the duplicate in place: %v", err)
	}

	// Later passes remember the kept duplicate without re-hashing it.
	report, err = s.ScanNow(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Duplicates != 1 || report.Admitted != 0 {
		t.Fatalf("kept duplicate should still be reported: %+v", report)
	}
}

func TestScanDuplicatePolicyRemove(t *testing.T) {
	cfg, st := newFixture(t, func(c *config.Config) {
		c.Scanner.DuplicatePolicy = config.DuplicateRemove
	})
	// Directory listings are lexicographic, so a.jpg is seen first and the
	// later drop is the duplicate.
	kept := writeWatchFile(t, st, store.MediaImage, "a.jpg", []byte("same"))
	dup := writeWatchFile(t, st, store.MediaImage, "a2.jpg", []byte("same"))

	s := scanner.New(cfg, st, logging.NewNop())
	report, err := s.ScanNow(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Admitted != 1 || report.Duplicates != 1 {
		t.Fatalf("remove policy: %+v", report)
	}
	if _, err := os.Stat(dup); !os.IsNotExist(err) {
		t.Fatal("remove policy must delete the duplicate drop")
	}
	if _, err := os.Stat(kept); err != nil {
		t.Fatalf("remove policy must leave the admitted file alone: %v", err)
	}
}

func TestScanAdmitsFileWithFutureModTime(t *testing.T) {
	cfg, st := newFixture(t, func(c *config.Config) {
		c.Scanner.QuiescenceSeconds = 5
	})
	path := writeWatchFile(t, st, store.MediaImage, "skewed.jpg", []byte("jpeg"))
	future := time.Now().Add(48 * time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	// A file whose mtime is ahead of the clock is settled, not pending: it
	// must never be held by the quiescence window.
	s := scanner.New(cfg, st, logging.NewNop())
	report, err := s.ScanNow(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Admitted != 1 || report.Pending != 0 {
		t.Fatalf("skewed file not admitted: %+v", report)
	}
}

func TestScanHonorsInterval(t *testing.T) {
	cfg, st := newFixture(t, func(c *config.Config) {
		c.Scanner.IntervalMinutes = 30
	})
	writeWatchFile(t, st, store.MediaImage, "a.jpg", []byte("one"))

	current := time.Now()
	s := scanner.New(cfg, st, logging.NewNop(), scanner.WithNow(func() time.Time { return current }))

	if report, _ := s.Scan(context.Background()); report.Admitted != 1 {
		t.Fatal("first scan should run immediately")
	}

	writeWatchFile(t, st, store.MediaImage, "b.jpg", []byte("two"))
	current = current.Add(time.Minute)
	if report, _ := s.Scan(context.Background()); report.Admitted != 0 {
		t.Fatal("scan inside the interval must be a no-op")
	}

	current = current.Add(30 * time.Minute)
	if report, _ := s.Scan(context.Background()); report.Admitted != 1 {
		t.Fatal("scan after the interval should run")
	}
}
