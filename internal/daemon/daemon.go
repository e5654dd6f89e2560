package daemon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"

	"checkproof/internal/api"
	"checkproof/internal/capture"
	"checkproof/internal/config"
	"checkproof/internal/connectivity"
	"checkproof/internal/evidence"
	"checkproof/internal/logging"
	"checkproof/internal/manager"
	"checkproof/internal/notifications"
	"checkproof/internal/queue"
	"checkproof/internal/services"
	"checkproof/internal/session"
)

// Dependencies are the collaborators the daemon coordinates. Store, Manager,
// Oracle, Session and Producer are required.
type Dependencies struct {
	Store    *queue.Store
	Manager  *manager.Manager
	Oracle   *connectivity.Oracle
	Session  *session.Manager
	Producer *capture.Producer
	Notifier notifications.Service
	// Gatherer backs GET /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// Closers run once on Close, after the background loops stop.
	Closers []func()
}

// Daemon coordinates the connectivity oracle, the queue manager and the HTTP
// API, and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	manager  *manager.Manager
	oracle   *connectivity.Oracle
	session  *session.Manager
	producer *capture.Producer
	notifier notifications.Service
	gatherer prometheus.Gatherer
	queueSvc *api.QueueService
	closers  []func()

	lockPath string
	lock     *flock.Flock
	apiSrv   *apiServer

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closed  bool

	ctxMu sync.Mutex
	ctx   context.Context
}

// New constructs a daemon over initialized dependencies.
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || deps.Store == nil || deps.Manager == nil || deps.Oracle == nil || deps.Session == nil || deps.Producer == nil {
		return nil, errors.New("daemon requires config, store, manager, oracle, session, and producer")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.Noop()
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    deps.Store,
		manager:  deps.Manager,
		oracle:   deps.Oracle,
		session:  deps.Session,
		producer: deps.Producer,
		notifier: notifier,
		gatherer: deps.Gatherer,
		queueSvc: api.NewQueueService(deps.Store),
		closers:  deps.Closers,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.apiSrv = srv
	return d, nil
}

// Start acquires the daemon lock and launches the connectivity oracle, the
// queue manager loop and the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another checkproof daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.apiSrv.start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start api server: %w", err)
	}
	d.cancel = cancel
	d.setRunContext(runCtx)

	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		if err := d.oracle.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("connectivity oracle stopped", logging.Error(err))
		}
	}()
	go func() {
		defer d.wg.Done()
		if err := d.manager.Run(runCtx); err != nil {
			d.logger.Error("queue manager stopped", logging.Error(err))
		}
	}()

	d.running.Store(true)
	d.logger.Info("checkproof daemon started",
		logging.String("lock", d.lockPath),
		logging.String("connectivity_mode", d.oracle.Mode()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	d.apiSrv.stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.String("lock", d.lockPath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the lock file if no daemon is running"),
		)
	}
	d.setRunContext(nil)
	d.running.Store(false)
	d.logger.Info("checkproof daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.manager.Close()
	for i := len(d.closers) - 1; i >= 0; i-- {
		if d.closers[i] != nil {
			d.closers[i]()
		}
	}
	return d.store.Close()
}

// Running reports whether Start has succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Submit stamps a photo and hands it to the queue manager.
func (d *Daemon) Submit(ctx context.Context, req api.CaptureRequest) (api.SubmitResponse, error) {
	produceReq, err := captureRequest(req)
	if err != nil {
		return api.SubmitResponse{}, err
	}
	item, err := d.producer.Produce(ctx, produceReq)
	if err != nil {
		return api.SubmitResponse{}, err
	}
	outcome, err := d.manager.Submit(ctx, item)
	if err != nil {
		return api.SubmitResponse{}, err
	}
	return api.FromOutcome(outcome, item.Metadata.Address), nil
}

func captureRequest(req api.CaptureRequest) (capture.Request, error) {
	if len(req.Photo) == 0 {
		return capture.Request{}, fmt.Errorf("%w: photo is empty", evidence.ErrCaptureInvalid)
	}
	out := capture.Request{
		Photo:       bytes.NewReader(req.Photo),
		Brand:       strings.TrimSpace(req.Brand),
		NoWatermark: req.NoWatermark,
	}
	switch {
	case req.Latitude != nil && req.Longitude != nil:
		out.Coords = &evidence.Coords{Latitude: *req.Latitude, Longitude: *req.Longitude}
	case req.Latitude != nil || req.Longitude != nil:
		return capture.Request{}, fmt.Errorf("%w: latitude and longitude must be given together", evidence.ErrCaptureInvalid)
	}
	if raw := strings.TrimSpace(req.TakenAt); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return capture.Request{}, fmt.Errorf("%w: takenAt: %w", evidence.ErrCaptureInvalid, err)
		}
		out.TakenAt = t
	}
	return out, nil
}

// Retry runs one retry pass. While the daemon runs, stopping it cancels the pass.
func (d *Daemon) Retry(ctx context.Context) (api.RetryResponse, error) {
	ctx, cancel := d.runContext(ctx)
	defer cancel()
	result, err := d.manager.Retry(ctx)
	if err != nil {
		return api.RetryResponse{}, err
	}
	return api.FromRetryResult(result), nil
}

// ListQueue returns pending captures in insertion order.
func (d *Daemon) ListQueue(ctx context.Context) ([]api.QueueItem, error) {
	return d.queueSvc.List(ctx)
}

// QueueCount returns the number of pending captures.
func (d *Daemon) QueueCount(ctx context.Context) (int, error) {
	return d.queueSvc.Count(ctx)
}

// Login links an operator session from a one-time code.
func (d *Daemon) Login(ctx context.Context, code string) (api.SessionInfo, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return api.SessionInfo{}, fmt.Errorf("%w: code is required", services.ErrValidation)
	}
	info, err := d.session.Login(ctx, code)
	if err != nil {
		return api.SessionInfo{}, err
	}
	if info.Unlocked {
		if err := d.notifier.Publish(ctx, notifications.EventSessionLinked, notifications.Payload{"label": info.Label}); err != nil {
			d.logger.Debug("session notification failed", logging.Error(err))
		}
		// Captures queued while locked can go out now.
		if d.oracle.Online() {
			d.oracle.Trigger()
		}
	}
	return api.FromSessionInfo(info), nil
}

// Logout clears the operator session.
func (d *Daemon) Logout() error {
	return d.session.Logout()
}

// Session reports the operator session.
func (d *Daemon) Session() api.SessionInfo {
	return api.FromSessionInfo(d.session.Info())
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:           d.running.Load(),
		PID:               os.Getpid(),
		Online:            d.oracle.Online(),
		ConnectivityMode:  d.oracle.Mode(),
		Session:           d.Session(),
		UploadsConfigured: d.cfg.UploadsConfigured(),
		QueueDBPath:       d.store.Path(),
		LockPath:          d.lockPath,
	}
	mgrStatus, err := d.manager.Status(ctx)
	if err != nil {
		logging.WarnWithContext(d.logger, "failed to read queue status", "status_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the queue database"),
		)
		status.Message = err.Error()
		return status
	}
	api.FromManagerStatus(&status, mgrStatus)
	return status
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// runContext derives a context that also ends when the daemon stops, so long
// operations started over IPC stop with it.
func (d *Daemon) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	d.ctxMu.Lock()
	runCtx := d.ctx
	d.ctxMu.Unlock()
	merged, cancel := context.WithCancel(ctx)
	if runCtx == nil {
		return merged, cancel
	}
	stop := context.AfterFunc(runCtx, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}

func (d *Daemon) setRunContext(ctx context.Context) {
	d.ctxMu.Lock()
	d.ctx = ctx
	d.ctxMu.Unlock()
}
