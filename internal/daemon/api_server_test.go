package daemon

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"checkproof/internal/api"
	"checkproof/internal/config"
	"checkproof/internal/metrics"
	"checkproof/internal/testsupport"
)

func serve(t *testing.T, h http.Handler, method, target string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAPISubmitQueueAndDescribe(t *testing.T) {
	d, _ := newTestDaemon(t, testsupport.WithConnectivityMode(config.ConnectivityModeOffline))
	h := d.apiSrv.handler

	w := serve(t, h, http.MethodPost, "/api/captures", photoRequest(t), "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202 Accepted, got %d: %s", w.Code, w.Body.String())
	}
	var submitted api.SubmitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &submitted); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	if submitted.State != "queued" || submitted.ID == "" {
		t.Fatalf("unexpected submit response %+v", submitted)
	}

	w = serve(t, h, http.MethodGet, "/api/queue", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var list api.QueueListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode queue list: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].ID != submitted.ID {
		t.Fatalf("unexpected queue %+v", list.Items)
	}
	if list.Items[0].SizeBytes == 0 {
		t.Fatal("expected payload size in summary")
	}

	w = serve(t, h, http.MethodGet, "/api/queue/count", nil, "")
	var count api.QueueCountResponse
	if err := json.Unmarshal(w.Body.Bytes(), &count); err != nil || count.Pending != 1 {
		t.Fatalf("unexpected count %+v err=%v", count, err)
	}

	w = serve(t, h, http.MethodGet, "/api/queue/"+submitted.ID, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected describe 200, got %d", w.Code)
	}
	w = serve(t, h, http.MethodGet, "/api/queue/missing", nil, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected describe 404, got %d", w.Code)
	}
}

func TestAPISubmitOnlineReturnsCreated(t *testing.T) {
	d, _ := newTestDaemon(t)
	w := serve(t, d.apiSrv.handler, http.MethodPost, "/api/captures", photoRequest(t), "")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 Created, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAPISubmitBadRequests(t *testing.T) {
	d, _ := newTestDaemon(t)
	h := d.apiSrv.handler

	req := httptest.NewRequest(http.MethodPost, "/api/captures", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", w.Code)
	}

	w = serve(t, h, http.MethodPost, "/api/captures", api.CaptureRequest{}, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty photo, got %d", w.Code)
	}

	w = serve(t, h, http.MethodGet, "/api/captures", nil, "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestAPIRetryOffline(t *testing.T) {
	d, _ := newTestDaemon(t, testsupport.WithConnectivityMode(config.ConnectivityModeOffline))
	w := serve(t, d.apiSrv.handler, http.MethodPost, "/api/retry", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp api.RetryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode retry: %v", err)
	}
	if resp.Skipped != "offline" || resp.Message != "offline" {
		t.Fatalf("unexpected retry response %+v", resp)
	}
}

func TestAPISession(t *testing.T) {
	d, _ := newTestDaemon(t)
	h := d.apiSrv.handler

	w := serve(t, h, http.MethodPost, "/api/session", api.LoginRequest{Code: "bad"}, "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for rejected code, got %d", w.Code)
	}
	w = serve(t, h, http.MethodPost, "/api/session", api.LoginRequest{Code: "GOOD"}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for login, got %d: %s", w.Code, w.Body.String())
	}
	w = serve(t, h, http.MethodGet, "/api/session", nil, "")
	var info api.SessionInfo
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil || !info.Unlocked {
		t.Fatalf("expected unlocked session, got %+v err=%v", info, err)
	}
	w = serve(t, h, http.MethodDelete, "/api/session", nil, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for logout, got %d", w.Code)
	}
}

func TestAPIStatus(t *testing.T) {
	d, _ := newTestDaemon(t)
	w := serve(t, d.apiSrv.handler, http.MethodGet, "/api/status", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Online || status.ConnectivityMode != config.ConnectivityModeOnline {
		t.Fatalf("unexpected connectivity in status %+v", status)
	}
	if status.UploadsConfigured {
		t.Fatal("expected uploads to be unconfigured in tests")
	}
}

func TestAPIRequiresPlainToken(t *testing.T) {
	d, _ := newTestDaemon(t, testsupport.WithAPIToken("s3cret"))
	h := d.apiSrv.handler
	if w := serve(t, h, http.MethodGet, "/api/status", nil, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w := serve(t, h, http.MethodGet, "/api/status", nil, "wrong"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}
	if w := serve(t, h, http.MethodGet, "/api/status", nil, "s3cret"); w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
}

func TestAPIAcceptsBcryptToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	d, _ := newTestDaemon(t, testsupport.WithAPIToken(string(hash)))
	h := d.apiSrv.handler
	if w := serve(t, h, http.MethodGet, "/api/status", nil, "s3cret"); w.Code != http.StatusOK {
		t.Fatalf("expected 200 with matching bcrypt token, got %d", w.Code)
	}
	if w := serve(t, h, http.MethodGet, "/api/status", nil, string(hash)); w.Code != http.StatusUnauthorized {
		t.Fatalf("presenting the hash itself must fail, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken("s3cret"))
	parts := testsupport.NewDaemonParts(t, cfg)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ManagerHooks().OnPending(3)
	d, err := New(cfg, Dependencies{
		Store:    parts.Store,
		Manager:  parts.Manager,
		Oracle:   parts.Oracle,
		Session:  parts.Session,
		Producer: parts.Producer,
		Gatherer: reg,
	}, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	w := serve(t, d.apiSrv.handler, http.MethodGet, "/metrics", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for metrics without token, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "checkproof_queue_pending 3") {
		t.Fatalf("expected pending gauge in metrics output:\n%s", w.Body.String())
	}
}

func TestNoAPIServerWhenBindEmpty(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	srv, err := newAPIServer(cfg, &Daemon{}, nil)
	if err != nil || srv != nil {
		t.Fatalf("expected nil server, got %v err=%v", srv, err)
	}
}
