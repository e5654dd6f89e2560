package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"time"

	"checkproof/internal/evidence"
	"checkproof/internal/logging"
	"checkproof/internal/services/catalog"
	"checkproof/internal/services/eventbus"
	"checkproof/internal/session"
)

// ErrUpload marks every failure returned by Upload. The cause is kept for
// logging but callers treat it as opaque.
var ErrUpload = errors.New("upload failed")

// ErrNotConfigured is wrapped when no backend is configured.
var ErrNotConfigured = errors.New("upload backend not configured")

const contentTypeJPEG = "image/jpeg"

// ObjectPutter stores photo bytes under a key.
type ObjectPutter interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Recorder inserts catalog records idempotently.
type Recorder interface {
	Insert(ctx context.Context, rec catalog.Record) (bool, error)
}

// Publisher announces finished uploads.
type Publisher interface {
	Publish(ctx context.Context, event eventbus.UploadedEvent) error
}

// SessionSource yields the unlocked operator session.
type SessionSource interface {
	Require() (session.State, error)
}

// Option customizes a Client.
type Option func(*Client)

// WithPublisher enables upload events.
func WithPublisher(p Publisher) Option {
	return func(c *Client) {
		c.publisher = p
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "upload")
	}
}

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithClientAgent overrides the client agent recorded in the catalog.
func WithClientAgent(agent string) Option {
	return func(c *Client) {
		if agent != "" {
			c.clientAgent = agent
		}
	}
}

// Client sends one capture to the backend: photo object, catalog record and
// an optional event. Each step is idempotent so a retried capture converges.
type Client struct {
	objects     ObjectPutter
	records     Recorder
	session     SessionSource
	publisher   Publisher
	logger      *slog.Logger
	now         func() time.Time
	clientAgent string
}

// New builds a Client.
func New(objects ObjectPutter, records Recorder, sess SessionSource, opts ...Option) *Client {
	c := &Client{
		objects:     objects,
		records:     records,
		session:     sess,
		logger:      logging.NewComponentLogger(nil, "upload"),
		now:         time.Now,
		clientAgent: ClientAgent(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload sends the capture. Tenant and owner come from the current session,
// overriding whatever the capture carried when it was taken.
func (c *Client) Upload(ctx context.Context, capture evidence.Capture) error {
	if c == nil || c.objects == nil || c.records == nil {
		return fmt.Errorf("%w: %w", ErrUpload, ErrNotConfigured)
	}
	if c.session == nil {
		return fmt.Errorf("%w: %w", ErrUpload, session.ErrSessionInvalid)
	}
	state, err := c.session.Require()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpload, err)
	}
	capture.Metadata.TenantID = state.TenantID
	capture.Metadata.OwnerUID = state.UID
	if capture.Metadata.OperatorLabel == "" {
		capture.Metadata.OperatorLabel = state.Label
	}

	key := capture.ObjectKey()
	logger := c.logger.With(logging.String(logging.FieldCaptureID, capture.ID))

	if err := c.objects.Put(ctx, key, capture.Payload, contentTypeJPEG); err != nil {
		return fmt.Errorf("%w: store photo: %w", ErrUpload, err)
	}
	inserted, err := c.records.Insert(ctx, catalog.NewRecord(capture, key, c.clientAgent))
	if err != nil {
		return fmt.Errorf("%w: record evidence: %w", ErrUpload, err)
	}
	if !inserted {
		logger.Debug("catalog record already present", logging.String("path", key))
	}

	if c.publisher != nil {
		event := eventbus.NewUploadedEvent(capture, key, c.now())
		if err := c.publisher.Publish(ctx, event); err != nil {
			logging.WarnWithContext(logger, "upload event not published", "event_publish_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check events.brokers"),
				logging.String(logging.FieldImpact, "downstream consumers miss this capture"),
			)
		}
	}

	logger.Info("capture uploaded",
		logging.String("path", key),
		logging.Int("size_bytes", len(capture.Payload)),
		logging.String(logging.FieldEventType, "capture_uploaded"),
	)
	return nil
}

// ClientAgent identifies this build in catalog records.
func ClientAgent() string {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
	return fmt.Sprintf("checkproof/%s (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
}
