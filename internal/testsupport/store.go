package testsupport

import (
	"context"
	"testing"

	"torrdrop/internal/config"
	"torrdrop/internal/inbox"
)

// MustOpenStore opens an inbox.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *inbox.Store {
	t.Helper()

	store, err := inbox.Open(cfg)
	if err != nil {
		t.Fatalf("inbox.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustRegister records a discovered descriptor for tests.
func MustRegister(t testing.TB, store *inbox.Store, path string, size int64) *inbox.Item {
	t.Helper()

	item, err := store.Register(context.Background(), path, size)
	if err != nil {
		t.Fatalf("store.Register: %v", err)
	}
	return item
}
