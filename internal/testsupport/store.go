package testsupport

import (
	"testing"

	"setlist/internal/config"
	"setlist/internal/index"
)

// MustOpenStore opens the index store for the supplied config and registers
// cleanup with the test lifecycle.
func MustOpenStore(t testing.TB, cfg *config.Config) *index.Store {
	t.Helper()

	store, err := index.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}
