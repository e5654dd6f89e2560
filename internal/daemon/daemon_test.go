package daemon

import (
	"context"
	"errors"
	"testing"

	"checkproof/internal/api"
	"checkproof/internal/config"
	"checkproof/internal/connectivity"
	"checkproof/internal/evidence"
	"checkproof/internal/manager"
	"checkproof/internal/testsupport"
)

func newTestDaemon(t *testing.T, opts ...testsupport.ConfigOption) (*Daemon, testsupport.DaemonParts) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	parts := testsupport.NewDaemonParts(t, cfg)
	d, err := New(cfg, Dependencies{
		Store:    parts.Store,
		Manager:  parts.Manager,
		Oracle:   parts.Oracle,
		Session:  parts.Session,
		Producer: parts.Producer,
	}, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})
	return d, parts
}

func photoRequest(t *testing.T) api.CaptureRequest {
	t.Helper()
	lat, lon := -34.6037, -58.3816
	return api.CaptureRequest{
		Photo:     testsupport.JPEGBytes(t, 320, 240),
		Latitude:  &lat,
		Longitude: &lon,
		TakenAt:   "2025-06-01T10:30:00Z",
	}
}

func TestDaemonStartStop(t *testing.T) {
	d, _ := newTestDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.PID == 0 || status.LockPath == "" || status.QueueDBPath == "" {
		t.Fatalf("expected runtime paths in status, got %+v", status)
	}
	if d.apiSrv.addr() == "" {
		t.Fatal("expected api server to be listening")
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestSecondInstanceBlockedByLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	build := func() *Daemon {
		parts := testsupport.NewDaemonParts(t, cfg)
		d, err := New(cfg, Dependencies{
			Store:    parts.Store,
			Manager:  parts.Manager,
			Oracle:   parts.Oracle,
			Session:  parts.Session,
			Producer: parts.Producer,
		}, nil)
		if err != nil {
			t.Fatalf("daemon.New: %v", err)
		}
		t.Cleanup(func() { d.Close() })
		return d
	}
	first, second := build(), build()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		t.Fatal("expected lock contention error")
	}
	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("second Start after release: %v", err)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := New(cfg, Dependencies{}, nil); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestSubmitUploadsWhenOnline(t *testing.T) {
	d, parts := newTestDaemon(t)
	resp, err := d.Submit(context.Background(), photoRequest(t))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.State != string(manager.StateDone) || resp.Message != manager.MsgUploaded {
		t.Fatalf("unexpected response %+v", resp)
	}
	if got := parts.Uploader.Uploaded(); len(got) != 1 || got[0] != resp.ID {
		t.Fatalf("expected one upload of %s, got %v", resp.ID, got)
	}
	if n, _ := d.QueueCount(context.Background()); n != 0 {
		t.Fatalf("expected empty queue, got %d", n)
	}
}

func TestSubmitQueuesOfflineThenRetryDrains(t *testing.T) {
	d, parts := newTestDaemon(t, testsupport.WithConnectivityMode(config.ConnectivityModeOffline))
	ctx := context.Background()

	resp, err := d.Submit(ctx, photoRequest(t))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.State != string(manager.StateQueued) || resp.Message != manager.MsgQueuedOffline {
		t.Fatalf("unexpected response %+v", resp)
	}
	items, err := d.ListQueue(ctx)
	if err != nil || len(items) != 1 || items[0].ID != resp.ID {
		t.Fatalf("expected queued capture, got %+v err=%v", items, err)
	}

	retry, err := d.Retry(ctx)
	if err != nil {
		t.Fatalf("Retry offline: %v", err)
	}
	if retry.Skipped != manager.SkipOffline {
		t.Fatalf("expected skipped retry while offline, got %+v", retry)
	}

	parts.Oracle.Set(true, connectivity.SourceManual)
	retry, err = d.Retry(ctx)
	if err != nil {
		t.Fatalf("Retry online: %v", err)
	}
	if retry.Succeeded != 1 || retry.Failed != 0 {
		t.Fatalf("unexpected retry result %+v", retry)
	}
	if n, _ := d.QueueCount(ctx); n != 0 {
		t.Fatalf("expected drained queue, got %d", n)
	}
}

func TestSubmitRejectsBadRequests(t *testing.T) {
	d, _ := newTestDaemon(t)
	lat := 1.0
	tests := []struct {
		name string
		req  api.CaptureRequest
	}{
		{"empty photo", api.CaptureRequest{}},
		{"half coordinates", api.CaptureRequest{Photo: []byte{0xff}, Latitude: &lat}},
		{"bad timestamp", api.CaptureRequest{Photo: []byte{0xff}, TakenAt: "yesterday"}},
		{"not an image", api.CaptureRequest{Photo: []byte("plain text")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.Submit(context.Background(), tt.req); !errors.Is(err, evidence.ErrCaptureInvalid) {
				t.Fatalf("expected ErrCaptureInvalid, got %v", err)
			}
		})
	}
}

func TestLoginLogout(t *testing.T) {
	d, _ := newTestDaemon(t)
	ctx := context.Background()
	if d.Session().Unlocked {
		t.Fatal("expected locked session before login")
	}
	info, err := d.Login(ctx, "CODE-1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !info.Unlocked || info.Label != "Guardia" {
		t.Fatalf("unexpected session %+v", info)
	}
	if _, err := d.Login(ctx, "  "); err == nil {
		t.Fatal("expected error for empty code")
	}
	if err := d.Logout(); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if d.Session().Unlocked {
		t.Fatal("expected locked session after logout")
	}
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	d, _ := newTestDaemon(t)
	sent, msg, err := d.TestNotification(context.Background())
	if err != nil || sent {
		t.Fatalf("expected no notification, got sent=%v err=%v", sent, err)
	}
	if msg != "ntfy topic not configured" {
		t.Fatalf("unexpected message %q", msg)
	}
}
