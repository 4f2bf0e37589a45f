package testsupport

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"snapflow/internal/store"
)

// WriteMedia drops a media file into a user's watch directory and returns
// its path. The mtime is backdated so quiescence windows see a settled file
// no matter which clock a test injects.
func WriteMedia(t testing.TB, st *store.Store, user string, kind store.MediaKind, name string, content []byte) string {
	t.Helper()

	dir := st.Layout().WatchKindDir(user, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir watch dir: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write media file: %v", err)
	}
	settled := time.Now().AddDate(-1, 0, 0)
	if err := os.Chtimes(path, settled, settled); err != nil {
		t.Fatalf("backdate media file: %v", err)
	}
	return path
}

// WriteFileSized fills the target path with the requested number of bytes.
// A size <= 0 writes a single byte.
func WriteFileSized(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir parent: %v", err)
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = byte('a' + i%26)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write sized file: %v", err)
	}
}
