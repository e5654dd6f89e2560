package upload_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"checkproof/internal/config"
	"checkproof/internal/services/catalog"
	"checkproof/internal/services/eventbus"
	"checkproof/internal/session"
	"checkproof/internal/testsupport"
	"checkproof/internal/upload"
)

type fakeObjects struct {
	puts map[string][]byte
	err  error
}

func (f *fakeObjects) Put(_ context.Context, key string, data []byte, contentType string) error {
	if f.err != nil {
		return f.err
	}
	if contentType != "image/jpeg" {
		return errors.New("unexpected content type " + contentType)
	}
	if f.puts == nil {
		f.puts = map[string][]byte{}
	}
	f.puts[key] = data
	return nil
}

type fakeRecords struct {
	records map[string]catalog.Record
	err     error
}

func (f *fakeRecords) Insert(_ context.Context, rec catalog.Record) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.records == nil {
		f.records = map[string]catalog.Record{}
	}
	if _, ok := f.records[rec.CaptureID]; ok {
		return false, nil
	}
	f.records[rec.CaptureID] = rec
	return true, nil
}

type fakePublisher struct {
	events []eventbus.UploadedEvent
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, event eventbus.UploadedEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type fakeSession struct {
	state session.State
	err   error
}

func (f fakeSession) Require() (session.State, error) {
	return f.state, f.err
}

var linked = fakeSession{state: session.State{UID: "op-7", OperatorID: "op-7", TenantID: "tenant-9", Label: "Guardia Sur"}}

func TestUploadStoresObjectRecordAndEvent(t *testing.T) {
	objects := &fakeObjects{}
	records := &fakeRecords{}
	events := &fakePublisher{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	client := upload.New(objects, records, linked,
		upload.WithPublisher(events),
		upload.WithClock(func() time.Time { return now }),
		upload.WithClientAgent("checkproof/test (linux/amd64)"),
	)

	capture := testsupport.NewCapture("cap-1")
	if err := client.Upload(context.Background(), capture); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	wantKey := "evidences/tenant-9/op-7/1748773800000_cap-1.jpg"
	if string(objects.puts[wantKey]) != "jpeg:cap-1" {
		t.Fatalf("expected object at %s, got %v", wantKey, objects.puts)
	}
	rec := records.records["cap-1"]
	if rec.Path != wantKey || rec.TenantID != "tenant-9" || rec.OwnerUID != "op-7" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.OperatorLabel != "Guardia Sur" || rec.ClientAgent != "checkproof/test (linux/amd64)" {
		t.Fatalf("unexpected record label/agent: %+v", rec)
	}
	if len(events.events) != 1 || !events.events[0].UploadedAt.Equal(now) {
		t.Fatalf("expected one event at %v, got %+v", now, events.events)
	}
}

func TestUploadIsIdempotent(t *testing.T) {
	objects := &fakeObjects{}
	records := &fakeRecords{}
	client := upload.New(objects, records, linked)
	capture := testsupport.NewCapture("cap-2")
	for i := 0; i < 2; i++ {
		if err := client.Upload(context.Background(), capture); err != nil {
			t.Fatalf("Upload #%d: %v", i+1, err)
		}
	}
	if len(objects.puts) != 1 || len(records.records) != 1 {
		t.Fatalf("expected one object and one record, got %d/%d", len(objects.puts), len(records.records))
	}
}

func TestUploadFailures(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name    string
		objects *fakeObjects
		records *fakeRecords
		session fakeSession
		cause   error
	}{
		{"session locked", &fakeObjects{}, &fakeRecords{}, fakeSession{err: session.ErrSessionInvalid}, session.ErrSessionInvalid},
		{"object store", &fakeObjects{err: boom}, &fakeRecords{}, linked, boom},
		{"catalog", &fakeObjects{}, &fakeRecords{err: boom}, linked, boom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := upload.New(tt.objects, tt.records, tt.session)
			err := client.Upload(context.Background(), testsupport.NewCapture("c"))
			if !errors.Is(err, upload.ErrUpload) || !errors.Is(err, tt.cause) {
				t.Fatalf("expected ErrUpload wrapping %v, got %v", tt.cause, err)
			}
		})
	}
}

func TestUploadIgnoresEventFailure(t *testing.T) {
	client := upload.New(&fakeObjects{}, &fakeRecords{}, linked, upload.WithPublisher(&fakePublisher{err: errors.New("down")}))
	if err := client.Upload(context.Background(), testsupport.NewCapture("c")); err != nil {
		t.Fatalf("event failure must not fail the upload: %v", err)
	}
}

func TestOpenBackendWithoutConfigQueuesEverything(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	backend, err := upload.OpenBackend(context.Background(), cfg, linked, nil)
	if err != nil {
		t.Fatalf("OpenBackend: %v", err)
	}
	defer backend.Close()
	err = backend.Client.Upload(context.Background(), testsupport.NewCapture("c"))
	if !errors.Is(err, upload.ErrUpload) || !errors.Is(err, upload.ErrNotConfigured) {
		t.Fatalf("expected not-configured upload error, got %v", err)
	}
}

func TestOpenBackendRejectsBadEvents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.ObjectStore = config.ObjectStore{Endpoint: "127.0.0.1:1", AccessKey: "a", SecretKey: "b", Bucket: "b"}
	cfg.Catalog.DatabaseURL = "postgres://u@127.0.0.1:1/db"
	cfg.Catalog.Migrate = false
	cfg.Events = config.Events{Enabled: true}
	if _, err := upload.OpenBackend(context.Background(), cfg, linked, nil); err == nil {
		t.Fatal("expected error for events without brokers")
	}
}

func TestClientAgentFormat(t *testing.T) {
	agent := upload.ClientAgent()
	if len(agent) < len("checkproof/") || agent[:len("checkproof/")] != "checkproof/" {
		t.Fatalf("unexpected client agent %q", agent)
	}
}
