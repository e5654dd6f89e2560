package objectstore_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"checkproof/internal/config"
	"checkproof/internal/services"
	"checkproof/internal/services/objectstore"
)

type fakeS3 struct {
	mu          sync.Mutex
	bucketHeads int
	puts        map[string]string
	denyBucket  bool
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := strings.TrimPrefix(r.URL.Path, "/")
	switch {
	case r.Method == http.MethodHead && !strings.Contains(path, "/"):
		f.bucketHeads++
		if f.denyBucket {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && strings.Contains(path, "/"):
		_, _ = io.Copy(io.Discard, r.Body)
		f.puts[path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func newStore(t *testing.T, fake *fakeS3) *objectstore.Store {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	store, err := objectstore.New(config.ObjectStore{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "access",
		SecretKey: "secret",
		Bucket:    "evidence",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestPutUploadsWithContentType(t *testing.T) {
	fake := &fakeS3{puts: map[string]string{}}
	store := newStore(t, fake)

	ctx := context.Background()
	key := "evidences/t1/op1/1700000000000_abc.jpg"
	if err := store.Put(ctx, key, []byte("jpeg"), "image/jpeg"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put(ctx, key, []byte("jpeg"), "image/jpeg"); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if got := fake.puts["evidence/"+key]; got != "image/jpeg" {
		t.Fatalf("expected image/jpeg upload at %s, got %v", key, fake.puts)
	}
	if fake.bucketHeads != 1 {
		t.Fatalf("bucket should be checked once, got %d", fake.bucketHeads)
	}
}

func TestPutFailsWhenBucketCheckDenied(t *testing.T) {
	fake := &fakeS3{puts: map[string]string{}, denyBucket: true}
	store := newStore(t, fake)
	err := store.Put(context.Background(), "k/v.jpg", []byte("x"), "image/jpeg")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestNewRequiresEndpoint(t *testing.T) {
	if _, err := objectstore.New(config.ObjectStore{}); !errors.Is(err, objectstore.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
