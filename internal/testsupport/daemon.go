package testsupport

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"

	"checkproof/internal/capture"
	"checkproof/internal/config"
	"checkproof/internal/connectivity"
	"checkproof/internal/evidence"
	"checkproof/internal/manager"
	"checkproof/internal/queue"
	"checkproof/internal/services/panel"
	"checkproof/internal/session"
)

// Uploader records uploads and fails with Err when set.
type Uploader struct {
	mu       sync.Mutex
	err      error
	uploaded []string
}

// Upload implements manager.Uploader.
func (u *Uploader) Upload(_ context.Context, c evidence.Capture) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return u.err
	}
	u.uploaded = append(u.uploaded, c.ID)
	return nil
}

// SetErr makes later uploads fail with err; nil restores success.
func (u *Uploader) SetErr(err error) {
	u.mu.Lock()
	u.err = err
	u.mu.Unlock()
}

// Uploaded returns the ids uploaded so far.
func (u *Uploader) Uploaded() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.uploaded...)
}

// Exchanger returns a fixed grant for any code except "bad".
type Exchanger struct {
	Grant panel.Grant
}

// Exchange implements session.Exchanger.
func (e Exchanger) Exchange(_ context.Context, code string) (panel.Grant, error) {
	if code == "bad" {
		return panel.Grant{}, panel.ErrCodeRejected
	}
	return e.Grant, nil
}

// CustomToken builds an unsigned JWT-shaped token carrying uid.
func CustomToken(uid string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"uid":"` + uid + `"}`))
	return header + "." + payload + ".sig"
}

// UnlockingExchanger returns an exchanger whose grant unlocks the session.
func UnlockingExchanger() Exchanger {
	return Exchanger{Grant: panel.Grant{
		CustomToken: CustomToken("op-1"),
		TenantID:    "tenant-1",
		OperatorID:  "op-1",
		Label:       "Guardia",
	}}
}

// DaemonParts are the collaborators a daemon is built from.
type DaemonParts struct {
	Store    *queue.Store
	Uploader *Uploader
	Oracle   *connectivity.Oracle
	Session  *session.Manager
	Producer *capture.Producer
	Manager  *manager.Manager
}

// NewDaemonParts wires a queue, manager, session and producer over cfg with
// a recording uploader. The oracle follows cfg.Connectivity.Mode and never probes.
func NewDaemonParts(t testing.TB, cfg *config.Config) DaemonParts {
	t.Helper()
	store := MustOpenStore(t, cfg)
	sess, err := session.NewManager(cfg, session.WithExchanger(UnlockingExchanger()))
	if err != nil {
		t.Fatalf("session.NewManager: %v", err)
	}
	producer, err := capture.NewProducer(cfg.Capture, capture.WithSession(sess))
	if err != nil {
		t.Fatalf("capture.NewProducer: %v", err)
	}
	oracle := connectivity.New(cfg.Connectivity)
	uploader := &Uploader{}
	return DaemonParts{
		Store:    store,
		Uploader: uploader,
		Oracle:   oracle,
		Session:  sess,
		Producer: producer,
		Manager:  manager.New(store, uploader, oracle),
	}
}
