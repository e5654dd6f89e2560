package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"checkproof/internal/evidence"
)

type mockQueueReader struct {
	summaries []evidence.Summary
	capture   *evidence.Capture
	count     int
	err       error
}

func (m *mockQueueReader) List(context.Context) ([]evidence.Summary, error) {
	return m.summaries, m.err
}

func (m *mockQueueReader) Count(context.Context) (int, error) {
	return m.count, m.err
}

func (m *mockQueueReader) Get(context.Context, string) (*evidence.Capture, error) {
	return m.capture, m.err
}

func TestQueueService_List(t *testing.T) {
	created := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
	reader := &mockQueueReader{summaries: []evidence.Summary{{
		ID:        "cap-1",
		Address:   "Av. Corrientes 1234 – Buenos Aires",
		CreatedAt: created,
		SizeBytes: 2048,
	}}}
	svc := NewQueueService(reader)
	got, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}
	if got[0].CreatedAt != "2025-06-01T10:30:00.000Z" {
		t.Fatalf("unexpected createdAt %q", got[0].CreatedAt)
	}
	if got[0].DeviceTS != "" {
		t.Fatalf("zero device timestamp should be omitted, got %q", got[0].DeviceTS)
	}
}

func TestQueueService_ListError(t *testing.T) {
	svc := NewQueueService(&mockQueueReader{err: errors.New("boom")})
	if _, err := svc.List(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestQueueService_Describe(t *testing.T) {
	reader := &mockQueueReader{capture: &evidence.Capture{ID: "cap-2", Payload: []byte{1, 2, 3}}}
	svc := NewQueueService(reader)
	got, err := svc.Describe(context.Background(), "cap-2")
	if err != nil {
		t.Fatalf("Describe returned error: %v", err)
	}
	if got == nil || got.ID != "cap-2" || got.SizeBytes != 3 {
		t.Fatalf("unexpected item %+v", got)
	}

	reader.capture = nil
	got, err = svc.Describe(context.Background(), "missing")
	if err != nil || got != nil {
		t.Fatalf("expected nil for missing capture, got %+v err=%v", got, err)
	}
}

func TestNilQueueService(t *testing.T) {
	var svc *QueueService
	if items, err := svc.List(context.Background()); err != nil || items != nil {
		t.Fatalf("nil service List = %v, %v", items, err)
	}
	if NewQueueService(nil) != nil {
		t.Fatal("expected nil service for nil reader")
	}
}
