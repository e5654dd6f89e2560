package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"checkproof/internal/connectivity"
	"checkproof/internal/evidence"
	"checkproof/internal/logging"
	"checkproof/internal/metrics"
	"checkproof/internal/notifications"
	"checkproof/internal/services"
)

// State is the lifecycle position of one capture.
type State string

const (
	StateCreated   State = "created"
	StateQueued    State = "queued"
	StateUploading State = "uploading"
	StateDone      State = "done"
)

// Status messages shown to the operator.
const (
	MsgUploaded       = "uploaded"
	MsgQueuedOffline  = "queued (offline)"
	MsgQueuedFailed   = "queued (upload failed)"
	MsgOffline        = "offline"
	MsgNoPending      = "no pending items"
	MsgRetryFinished  = "retry finished"
	msgRetryingFormat = "retrying %d…"
	msgPendingFormat  = "pending: %d"
)

// SkipOffline is RetryResult.Skipped when no pass ran because the device is offline.
const SkipOffline = "offline"

const defaultRetryInterval = 5 * time.Minute

// Store is the persistent queue the manager drives.
type Store interface {
	Put(ctx context.Context, capture evidence.Capture) error
	GetAll(ctx context.Context) ([]evidence.Capture, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// Uploader sends one capture to the backend.
type Uploader interface {
	Upload(ctx context.Context, capture evidence.Capture) error
}

// Connectivity reports reachability and its changes.
type Connectivity interface {
	Online() bool
	Subscribe() (<-chan connectivity.Event, func())
}

// Outcome is the result of Submit.
type Outcome struct {
	ID     string `json:"id"`
	State  State  `json:"state"`
	Reason string `json:"reason,omitempty"`
}

// ItemResult is the per-item result of a retry pass.
type ItemResult struct {
	ID  string `json:"id"`
	Err error  `json:"-"`
}

// Succeeded reports whether the item was uploaded and removed.
func (r ItemResult) Succeeded() bool { return r.Err == nil }

// RetryResult summarizes one retry pass.
type RetryResult struct {
	Attempted  int          `json:"attempted"`
	Succeeded  int          `json:"succeeded"`
	Failed     int          `json:"failed"`
	Skipped    string       `json:"skipped,omitempty"`
	Items      []ItemResult `json:"-"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
}

// Status is a point-in-time view of the manager.
type Status struct {
	Pending   int          `json:"pending"`
	Online    bool         `json:"online"`
	Message   string       `json:"message"`
	Running   bool         `json:"running"`
	Current   string       `json:"current,omitempty"`
	LastRetry *RetryResult `json:"lastRetry,omitempty"`
}

// Option customizes a Manager.
type Option func(*Manager)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logging.NewComponentLogger(logger, "manager")
	}
}

// WithNotifier publishes queue events.
func WithNotifier(n notifications.Service) Option {
	return func(m *Manager) {
		if n != nil {
			m.notifier = n
		}
	}
}

// WithMetrics records observations.
func WithMetrics(h metrics.Hooks) Option {
	return func(m *Manager) {
		m.hooks = h
	}
}

// WithRetryInterval sets the periodic sweep cadence used by Run.
func WithRetryInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.retryInterval = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager decides whether a capture is uploaded now or queued, and drains
// the queue when connectivity returns. At most one retry pass runs at a time.
type Manager struct {
	store         Store
	uploader      Uploader
	conn          Connectivity
	notifier      notifications.Service
	hooks         metrics.Hooks
	logger        *slog.Logger
	retryInterval time.Duration
	now           func() time.Time

	flight singleflight.Group

	// life bounds retry passes started outside Run; Close cancels it.
	life     context.Context
	stopLife context.CancelFunc

	mu        sync.Mutex
	runCtx    context.Context
	message   string
	running   bool
	current   string
	lastRetry *RetryResult
}

// New builds a Manager over its collaborators.
func New(store Store, uploader Uploader, conn Connectivity, opts ...Option) *Manager {
	m := &Manager{
		store:         store,
		uploader:      uploader,
		conn:          conn,
		notifier:      notifications.Noop(),
		logger:        logging.NewComponentLogger(nil, "manager"),
		retryInterval: defaultRetryInterval,
		now:           time.Now,
	}
	m.life, m.stopLife = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Submit uploads the capture when online, otherwise queues it. Upload
// failures queue the capture; only queue storage failures are returned.
func (m *Manager) Submit(ctx context.Context, capture evidence.Capture) (Outcome, error) {
	if err := capture.Validate(); err != nil {
		m.observeSubmit("rejected")
		return Outcome{ID: capture.ID, State: StateCreated}, err
	}
	ctx = m.captureContext(ctx, capture.ID, "submit")
	logger := logging.WithContext(ctx, m.logger)

	reason := SkipOffline
	message := MsgQueuedOffline
	if m.conn.Online() {
		err := m.upload(ctx, capture)
		if err == nil {
			m.setMessage(MsgUploaded)
			m.observeSubmit("uploaded")
			logger.Info("capture uploaded directly", logging.String(logging.FieldEventType, "capture_submitted"))
			return Outcome{ID: capture.ID, State: StateDone}, nil
		}
		reason = err.Error()
		message = MsgQueuedFailed
		logging.WarnWithContext(logger, "upload failed; queueing capture", "upload_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the capture is retried when connectivity returns or on demand"),
			logging.String(logging.FieldImpact, "evidence reaches the backend later"),
		)
	}

	// The capture must reach the queue even when the caller has gone away.
	ctx = context.WithoutCancel(ctx)
	if err := m.store.Put(ctx, capture); err != nil {
		m.observeSubmit("storage_error")
		logging.ErrorWithContext(logger, "failed to queue capture", "queue_put_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space and permissions of the data directory"),
			logging.String(logging.FieldImpact, "this capture was not saved"),
		)
		m.notify(ctx, notifications.EventStorageError, notifications.Payload{"error": err})
		return Outcome{ID: capture.ID, State: StateCreated, Reason: reason}, err
	}

	m.setMessage(message)
	m.observeSubmit("queued")
	pending := m.refreshPending(ctx)
	logger.Info("capture queued",
		logging.String("reason", reason),
		logging.Int("pending", pending),
		logging.String(logging.FieldEventType, "capture_queued"),
	)
	m.notify(ctx, notifications.EventCaptureQueued, notifications.Payload{"pending": pending, "reason": reason})
	return Outcome{ID: capture.ID, State: StateQueued, Reason: reason}, nil
}

// Retry runs one pass over the queue. Concurrent callers share the pass that
// is already running and receive its result. A caller whose ctx ends stops
// waiting but the pass continues; only Close or the end of Run stops it,
// between items.
func (m *Manager) Retry(ctx context.Context) (RetryResult, error) {
	ch := m.flight.DoChan("retry", func() (any, error) {
		passCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()
		stop := context.AfterFunc(m.lifecycle(), cancel)
		defer stop()
		return m.retryPass(passCtx)
	})
	select {
	case <-ctx.Done():
		return RetryResult{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return RetryResult{}, res.Err
		}
		return res.Val.(RetryResult), nil
	}
}

// Close stops a running retry pass after its current item. Passes started
// later see a cancelled context and attempt nothing.
func (m *Manager) Close() {
	m.stopLife()
}

// lifecycle is the context that bounds retry passes: the active Run's
// context, or the manager's own otherwise.
func (m *Manager) lifecycle() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runCtx != nil {
		return m.runCtx
	}
	return m.life
}

func (m *Manager) setRunContext(ctx context.Context) {
	m.mu.Lock()
	m.runCtx = ctx
	m.mu.Unlock()
}

func (m *Manager) retryPass(ctx context.Context) (RetryResult, error) {
	ctx = services.WithOperation(ctx, "retry")
	started := m.now()
	result := RetryResult{StartedAt: started}

	if !m.conn.Online() {
		result.Skipped = SkipOffline
		result.FinishedAt = started
		m.setMessage(MsgOffline)
		m.observeRetry(SkipOffline)
		return result, nil
	}

	items, err := m.store.GetAll(ctx)
	if err != nil {
		logging.ErrorWithContext(m.logger, "failed to read queue", "queue_read_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the queue database"),
			logging.String(logging.FieldImpact, "pending captures are not retried"),
		)
		m.notify(ctx, notifications.EventStorageError, notifications.Payload{"error": err})
		return RetryResult{}, err
	}
	if len(items) == 0 {
		result.FinishedAt = m.now()
		m.setMessage(MsgNoPending)
		m.observeRetry("empty")
		m.observePending(0)
		m.recordRetry(result)
		return result, nil
	}

	m.beginPass(len(items))
	defer m.endPass()

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		result.Attempted++
		itemErr := m.retryItem(ctx, item)
		result.Items = append(result.Items, ItemResult{ID: item.ID, Err: itemErr})
		if itemErr != nil {
			result.Failed++
			continue
		}
		result.Succeeded++
	}

	result.FinishedAt = m.now()
	m.setMessage(MsgRetryFinished)
	m.observeRetry("completed")
	pending := m.refreshPending(ctx)
	m.recordRetry(result)
	m.logger.Info("retry pass finished",
		logging.Int("attempted", result.Attempted),
		logging.Int("succeeded", result.Succeeded),
		logging.Int("failed", result.Failed),
		logging.Int("pending", pending),
		logging.Duration("duration", result.FinishedAt.Sub(started)),
		logging.String(logging.FieldEventType, "retry_finished"),
	)
	m.notify(ctx, notifications.EventRetryCompleted, notifications.Payload{
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	})
	return result, nil
}

// retryItem uploads and removes one capture. A failed delete after a
// successful upload leaves the capture queued; the next upload overwrites the
// same object and the catalog ignores the duplicate.
func (m *Manager) retryItem(ctx context.Context, item evidence.Capture) error {
	ctx = m.captureContext(ctx, item.ID, "retry")
	logger := logging.WithContext(ctx, m.logger)
	m.setCurrent(item.ID)
	defer m.setCurrent("")

	if err := m.upload(ctx, item); err != nil {
		logger.Info("retry upload failed; capture stays queued",
			logging.Error(err),
			logging.String(logging.FieldEventType, "retry_item_failed"),
		)
		return err
	}
	// The upload is confirmed; finish the removal even if the pass is being cancelled.
	if err := m.store.Delete(context.WithoutCancel(ctx), item.ID); err != nil {
		logging.ErrorWithContext(logger, "uploaded capture could not be removed from queue", "queue_delete_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the queue database"),
			logging.String(logging.FieldImpact, "the capture will be uploaded again"),
		)
		return fmt.Errorf("remove uploaded capture: %w", err)
	}
	logger.Debug("queued capture uploaded", logging.String(logging.FieldEventType, "retry_item_uploaded"))
	return nil
}

func (m *Manager) upload(ctx context.Context, capture evidence.Capture) error {
	start := m.now()
	err := m.uploader.Upload(ctx, capture)
	if m.hooks.OnUpload != nil {
		m.hooks.OnUpload(err == nil, m.now().Sub(start))
	}
	return err
}

// Run consumes connectivity events until ctx is cancelled. Every transition
// to online starts a retry pass, as does each periodic sweep while online.
// Events are handled one at a time so passes never overlap.
func (m *Manager) Run(ctx context.Context) error {
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	stopWithManager := context.AfterFunc(m.life, stop)
	defer stopWithManager()
	m.setRunContext(runCtx)
	defer m.setRunContext(nil)
	ctx = runCtx

	events, cancel := m.conn.Subscribe()
	defer cancel()

	online := m.conn.Online()
	m.observeOnline(online)
	pending := m.refreshPending(ctx)
	m.setMessage(fmt.Sprintf(msgPendingFormat, pending))
	if online && pending > 0 {
		m.runRetry(ctx, "startup")
	}

	ticker := time.NewTicker(m.retryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			m.observeOnline(ev.Kind == connectivity.KindOnline)
			if ev.Kind != connectivity.KindOnline {
				m.setMessage(MsgOffline)
				continue
			}
			m.runRetry(ctx, "online:"+string(ev.Source))
		case <-ticker.C:
			if m.conn.Online() {
				m.runRetry(ctx, "sweep")
			}
		}
	}
}

func (m *Manager) runRetry(ctx context.Context, trigger string) {
	result, err := m.Retry(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		m.logger.Error("retry pass failed",
			logging.String("trigger", trigger),
			logging.Error(err),
			logging.String(logging.FieldEventType, "retry_failed"),
		)
		return
	}
	m.logger.Debug("retry pass triggered",
		logging.String("trigger", trigger),
		logging.Int("attempted", result.Attempted),
		logging.String("skipped", result.Skipped),
	)
}

// Status reports the pending count and the latest activity.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	pending, err := m.store.Count(ctx)
	if err != nil {
		return Status{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	status := Status{
		Pending: pending,
		Online:  m.conn.Online(),
		Message: m.message,
		Running: m.running,
		Current: m.current,
	}
	if status.Message == "" {
		status.Message = fmt.Sprintf(msgPendingFormat, pending)
	}
	if m.lastRetry != nil {
		last := *m.lastRetry
		status.LastRetry = &last
	}
	return status, nil
}

func (m *Manager) beginPass(n int) {
	m.mu.Lock()
	m.running = true
	m.message = fmt.Sprintf(msgRetryingFormat, n)
	m.mu.Unlock()
}

func (m *Manager) endPass() {
	m.mu.Lock()
	m.running = false
	m.current = ""
	m.mu.Unlock()
}

func (m *Manager) setCurrent(id string) {
	m.mu.Lock()
	m.current = id
	m.mu.Unlock()
}

func (m *Manager) setMessage(msg string) {
	m.mu.Lock()
	m.message = msg
	m.mu.Unlock()
}

func (m *Manager) recordRetry(result RetryResult) {
	m.mu.Lock()
	m.lastRetry = &result
	m.mu.Unlock()
}

func (m *Manager) refreshPending(ctx context.Context) int {
	count, err := m.store.Count(ctx)
	if err != nil {
		m.logger.Warn("failed to count pending captures",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_count_failed"),
			logging.String(logging.FieldErrorHint, "check the queue database"),
			logging.String(logging.FieldImpact, "status may show a stale pending count"),
		)
		return 0
	}
	m.observePending(count)
	return count
}

func (m *Manager) captureContext(ctx context.Context, id, operation string) context.Context {
	ctx = services.WithCaptureID(ctx, id)
	return services.WithOperation(ctx, operation)
}

func (m *Manager) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		m.logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}

func (m *Manager) observeSubmit(outcome string) {
	if m.hooks.OnSubmit != nil {
		m.hooks.OnSubmit(outcome)
	}
}

func (m *Manager) observeRetry(result string) {
	if m.hooks.OnRetryPass != nil {
		m.hooks.OnRetryPass(result)
	}
}

func (m *Manager) observePending(n int) {
	if m.hooks.OnPending != nil {
		m.hooks.OnPending(n)
	}
}

func (m *Manager) observeOnline(online bool) {
	if m.hooks.OnOnline != nil {
		m.hooks.OnOnline(online)
	}
}
