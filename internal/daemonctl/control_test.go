package daemonctl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"
	"time"

	"checkproof/internal/session"
	"checkproof/internal/testsupport"
)

func TestStopAndTerminateWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, err := StopAndTerminate(filepath.Join(t.TempDir(), "missing.sock"), cfg, 100*time.Millisecond)
	if !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestProcessInfoWithoutDaemon(t *testing.T) {
	alive, pid, err := ProcessInfo(filepath.Join(t.TempDir(), "missing.sock"))
	if err != nil {
		t.Fatalf("ProcessInfo: %v", err)
	}
	if alive || pid != 0 {
		t.Fatalf("expected no daemon, got alive=%v pid=%d", alive, pid)
	}
}

func TestForceKillProcessRefusesSelf(t *testing.T) {
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "checkproofd.pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if _, err := ForceKillProcess(pidPath, "", 0); err == nil {
		t.Fatal("expected refusal to kill current process")
	}
}

func TestForceKillProcessWithoutPID(t *testing.T) {
	if _, err := ForceKillProcess(filepath.Join(t.TempDir(), "none.pid"), "", 0); err == nil {
		t.Fatal("expected error when pid is unknown")
	}
}

func TestBuildStatusSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustPut(t, store, testsupport.NewCapture("a"))
	testsupport.MustPut(t, store, testsupport.NewCapture("b"))
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	state := session.State{
		CustomToken: testsupport.CustomToken("op-1"),
		UID:         "op-1",
		TenantID:    "tenant-1",
		OperatorID:  "op-1",
		Label:       "Guardia",
	}
	if err := session.NewFileStore(cfg.SessionPath()).Save(state); err != nil {
		t.Fatalf("save session: %v", err)
	}

	snapshot, err := BuildStatusSnapshot(context.Background(), filepath.Join(t.TempDir(), "missing.sock"), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if snapshot.Running {
		t.Fatal("offline snapshot must not report running")
	}
	if snapshot.Pending != 2 {
		t.Fatalf("expected 2 pending, got %d", snapshot.Pending)
	}
	if !snapshot.Session.Unlocked || snapshot.Session.Label != "Guardia" {
		t.Fatalf("unexpected session %+v", snapshot.Session)
	}
	if snapshot.QueueDBPath != cfg.QueueDBPath() {
		t.Fatalf("queue path = %q", snapshot.QueueDBPath)
	}
}

func TestBuildStatusSnapshotRequiresConfig(t *testing.T) {
	if _, err := BuildStatusSnapshot(context.Background(), "", nil); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestIsDaemonUnavailable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"not exist", os.ErrNotExist, true},
		{"refused", syscall.ECONNREFUSED, true},
		{"wrapped enoent", &os.PathError{Op: "dial", Path: "x", Err: syscall.ENOENT}, true},
		{"other", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isDaemonUnavailable(tt.err); got != tt.want {
				t.Fatalf("isDaemonUnavailable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
