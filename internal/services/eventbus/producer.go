package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"checkproof/internal/config"
	"checkproof/internal/evidence"
	"checkproof/internal/services"
)

// EventUploaded is the type tag of upload events.
const EventUploaded = "evidence.uploaded"

// ErrDisabled is returned by New when events are turned off.
var ErrDisabled = errors.New("events disabled")

// UploadedEvent announces a capture that reached the backend.
type UploadedEvent struct {
	Type          string           `json:"type"`
	CaptureID     string           `json:"captureId"`
	TenantID      string           `json:"tenantId"`
	OwnerUID      string           `json:"ownerUid"`
	OperatorLabel string           `json:"operatorLabel,omitempty"`
	Path          string           `json:"path"`
	Address       string           `json:"address,omitempty"`
	Coords        *evidence.Coords `json:"coords,omitempty"`
	DeviceTS      time.Time        `json:"deviceTs"`
	UploadedAt    time.Time        `json:"uploadedAt"`
}

// NewUploadedEvent builds the event for a capture stored at path.
func NewUploadedEvent(capture evidence.Capture, path string, at time.Time) UploadedEvent {
	meta := capture.Metadata
	return UploadedEvent{
		Type:          EventUploaded,
		CaptureID:     capture.ID,
		TenantID:      meta.TenantID,
		OwnerUID:      meta.OwnerUID,
		OperatorLabel: meta.OperatorLabel,
		Path:          path,
		Address:       meta.Address,
		Coords:        meta.Coords,
		DeviceTS:      meta.DeviceTS.UTC(),
		UploadedAt:    at.UTC(),
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes upload events to Kafka.
type Producer struct {
	writer messageWriter
	topic  string
}

// New creates a Producer for the configured brokers and topic.
func New(cfg config.Events) (*Producer, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if len(cfg.Brokers) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "eventbus", "init", "no brokers configured", nil)
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		WriteTimeout:           10 * time.Second,
		AllowAutoTopicCreation: true,
	}
	return &Producer{writer: writer, topic: cfg.Topic}, nil
}

// Topic returns the destination topic.
func (p *Producer) Topic() string { return p.topic }

// Publish serializes the event to JSON and sends it keyed by capture id so all
// events of one capture land on the same partition.
func (p *Producer) Publish(ctx context.Context, event UploadedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.CaptureID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return services.Wrap(services.ErrTransient, "eventbus", "publish", event.CaptureID, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
