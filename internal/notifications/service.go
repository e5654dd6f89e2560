package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"checkproof/internal/config"
)

const userAgent = "CheckProof-Go/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventCaptureQueued  Event = "capture_queued"
	EventRetryCompleted Event = "retry_completed"
	EventStorageError   Event = "storage_error"
	EventSessionLinked  Event = "session_linked"
	EventTest           Event = "test"
)

// Payload carries event fields. Keys are event-specific.
type Payload map[string]any

// Service publishes daemon events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		cfg:      cfg.Notifications,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	cfg      config.Notifications
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventCaptureQueued:
		if !n.cfg.Queued {
			return message{}, false
		}
		body := fmt.Sprintf("📥 Evidence saved offline (%d pending)", intValue(payload, "pending"))
		if reason := stringValue(payload, "reason"); reason != "" {
			body += "\nReason: " + reason
		}
		return message{
			title: "CheckProof - Queued",
			body:  body,
			tags:  []string{"checkproof", "queue", "offline"},
		}, true
	case EventRetryCompleted:
		failed := intValue(payload, "failed")
		if !n.cfg.Retry || failed == 0 {
			return message{}, false
		}
		return message{
			title: "CheckProof - Retry (with errors)",
			body: fmt.Sprintf("🔁 Retry finished: %d uploaded, %d still pending",
				intValue(payload, "succeeded"), failed),
			tags: []string{"checkproof", "retry", "partial"},
		}, true
	case EventStorageError:
		if !n.cfg.Errors {
			return message{}, false
		}
		errText := stringValue(payload, "error")
		if errText == "" {
			errText = "unknown"
		}
		return message{
			title:    "CheckProof - Storage Error",
			body:     "❌ Evidence could not be saved: " + errText,
			tags:     []string{"checkproof", "error", "alert"},
			priority: "high",
		}, true
	case EventSessionLinked:
		return message{
			title: "CheckProof - Session Linked",
			body:  fmt.Sprintf("🔐 Linked operator %s", stringValue(payload, "label")),
			tags:  []string{"checkproof", "session"},
		}, true
	case EventTest:
		return message{
			title:    "CheckProof - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"checkproof", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func stringValue(payload Payload, key string) string {
	switch v := payload[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func intValue(payload Payload, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

// Noop returns a Service that discards every event.
func Noop() Service { return noopService{} }
