package testsupport

import (
	"context"
	"testing"
	"time"

	"checkproof/internal/config"
	"checkproof/internal/evidence"
	"checkproof/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewCapture builds a valid capture with a small payload derived from id.
func NewCapture(id string) evidence.Capture {
	return evidence.Capture{
		ID:      id,
		Payload: []byte("jpeg:" + id),
		Metadata: evidence.Metadata{
			Address:  "Av. Siempre Viva 742 — Springfield",
			DeviceTS: time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC),
			Brand:    "CheckProof",
			TenantID: "tenant-1",
			OwnerUID: "op-1",
		},
	}
}

// MustPut stores captures and fails the test on error.
func MustPut(t testing.TB, store *queue.Store, captures ...evidence.Capture) {
	t.Helper()
	for _, c := range captures {
		if err := store.Put(context.Background(), c); err != nil {
			t.Fatalf("store.Put(%s): %v", c.ID, err)
		}
	}
}

// PendingIDs returns the ids currently queued, in order.
func PendingIDs(t testing.TB, store *queue.Store) []string {
	t.Helper()
	captures, err := store.GetAll(context.Background())
	if err != nil {
		t.Fatalf("store.GetAll: %v", err)
	}
	ids := make([]string, 0, len(captures))
	for _, c := range captures {
		ids = append(ids, c.ID)
	}
	return ids
}
