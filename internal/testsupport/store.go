package testsupport

import (
	"testing"

	"snapflow/internal/config"
	"snapflow/internal/logging"
	"snapflow/internal/store"
)

// OpenStore builds a directory store over the config's paths and creates the
// stage tree. Options pass through to the store, so tests driving a manual
// clock can inject it here too.
func OpenStore(t testing.TB, cfg *config.Config, opts ...store.Option) *store.Store {
	t.Helper()

	st, err := store.Open(cfg, logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return st
}
