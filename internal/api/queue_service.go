package api

import (
	"context"

	"checkproof/internal/evidence"
)

// QueueReader abstracts queue persistence interactions needed for API queries.
type QueueReader interface {
	List(ctx context.Context) ([]evidence.Summary, error)
	Count(ctx context.Context) (int, error)
	Get(ctx context.Context, id string) (*evidence.Capture, error)
}

// QueueService exposes read-only queue operations returning API DTOs.
type QueueService struct {
	store QueueReader
}

// NewQueueService constructs a QueueService around the provided reader.
func NewQueueService(store QueueReader) *QueueService {
	if store == nil {
		return nil
	}
	return &QueueService{store: store}
}

// List returns pending captures in insertion order.
func (s *QueueService) List(ctx context.Context) ([]QueueItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	summaries, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return FromSummaries(summaries), nil
}

// Count returns the number of pending captures.
func (s *QueueService) Count(ctx context.Context) (int, error) {
	if s == nil || s.store == nil {
		return 0, nil
	}
	return s.store.Count(ctx)
}

// Describe fetches a single pending capture.
func (s *QueueService) Describe(ctx context.Context, id string) (*QueueItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	capture, err := s.store.Get(ctx, id)
	if err != nil || capture == nil {
		return nil, err
	}
	dto := FromSummary(capture.Summarize())
	return &dto, nil
}
