package services_test

import (
	"context"
	"testing"

	"checkproof/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithCaptureID(ctx, "c-42")
	ctx = services.WithOperation(ctx, "retry")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.CaptureIDFromContext(ctx); !ok || id != "c-42" {
		t.Fatalf("unexpected capture id: %v %v", id, ok)
	}
	if op, ok := services.OperationFromContext(ctx); !ok || op != "retry" {
		t.Fatalf("unexpected operation: %v %v", op, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithOperation(ctx, "")
	ctx = services.WithCaptureID(ctx, "")
	if _, ok := services.OperationFromContext(ctx); ok {
		t.Fatal("expected no operation value")
	}
	if _, ok := services.CaptureIDFromContext(ctx); ok {
		t.Fatal("expected no capture id value")
	}
}
