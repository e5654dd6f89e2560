package capture_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"checkproof/internal/capture"
	"checkproof/internal/config"
	"checkproof/internal/evidence"
	"checkproof/internal/services/nominatim"
	"checkproof/internal/session"
	"checkproof/internal/stamp"
	"checkproof/internal/testsupport"
)

type fakeGeocoder struct {
	calls int
	addr  nominatim.Address
}

func (f *fakeGeocoder) Resolve(context.Context, float64, float64) nominatim.Address {
	f.calls++
	return f.addr
}

type fakeSession struct{ info session.Info }

func (f fakeSession) Info() session.Info { return f.info }

func newProducer(t *testing.T, opts ...capture.Option) *capture.Producer {
	t.Helper()
	p, err := capture.NewProducer(config.Default().Capture, opts...)
	if err != nil {
		t.Fatalf("NewProducer: %v", err)
	}
	return p
}

func TestProduceGeolocatedCapture(t *testing.T) {
	geo := &fakeGeocoder{addr: nominatim.Address{Line1: "Av. Corrientes 1234", Line2: "Buenos Aires – CABA"}}
	sess := fakeSession{info: session.Info{Unlocked: true, TenantID: "tenant-1", OperatorID: "op-1", Label: "Guardia"}}
	takenAt := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
	p := newProducer(t, capture.WithGeocoder(geo), capture.WithSession(sess))

	got, err := p.Produce(context.Background(), capture.Request{
		Photo:   bytes.NewReader(testsupport.JPEGBytes(t, 640, 480)),
		Coords:  &evidence.Coords{Latitude: -34.6037, Longitude: -58.3816},
		TakenAt: takenAt,
	})
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if got.ID == "" || len(got.Payload) == 0 {
		t.Fatalf("expected id and payload, got %q/%d", got.ID, len(got.Payload))
	}
	meta := got.Metadata
	if meta.Address != "Av. Corrientes 1234 — Buenos Aires – CABA" {
		t.Fatalf("unexpected address %q", meta.Address)
	}
	if meta.MapsURL != "https://www.google.com/maps?q=-34.6037,-58.3816" {
		t.Fatalf("unexpected maps url %q", meta.MapsURL)
	}
	if !meta.DeviceTS.Equal(takenAt) || meta.Brand != "CheckProof" {
		t.Fatalf("unexpected ts/brand: %v %q", meta.DeviceTS, meta.Brand)
	}
	if meta.TenantID != "tenant-1" || meta.OwnerUID != "op-1" || meta.OperatorLabel != "Guardia" {
		t.Fatalf("session fields not copied: %+v", meta)
	}
	if geo.calls != 1 {
		t.Fatalf("expected one geocode call, got %d", geo.calls)
	}
}

func TestProduceWithoutCoordinates(t *testing.T) {
	geo := &fakeGeocoder{}
	p := newProducer(t, capture.WithGeocoder(geo))
	got, err := p.Produce(context.Background(), capture.Request{
		Photo: bytes.NewReader(testsupport.JPEGBytes(t, 320, 240)),
		Brand: "Acme",
	})
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if geo.calls != 0 {
		t.Fatal("geocoder must not run without coordinates")
	}
	if got.Metadata.Address != stamp.UnavailableAddress {
		t.Fatalf("expected unavailable address, got %q", got.Metadata.Address)
	}
	if got.Metadata.Coords != nil || got.Metadata.MapsURL != "" {
		t.Fatalf("expected no position data: %+v", got.Metadata)
	}
	if got.Metadata.Brand != "Acme" {
		t.Fatalf("expected brand override, got %q", got.Metadata.Brand)
	}
}

func TestProduceFallsBackToCoordinatesWithoutGeocoder(t *testing.T) {
	p := newProducer(t)
	got, err := p.Produce(context.Background(), capture.Request{
		Photo:       bytes.NewReader(testsupport.JPEGBytes(t, 320, 240)),
		Coords:      &evidence.Coords{Latitude: 1.5, Longitude: 2.25},
		NoWatermark: true,
	})
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if got.Metadata.Address != "lat:1.5, lon:2.25" {
		t.Fatalf("unexpected fallback address %q", got.Metadata.Address)
	}
}

func TestProduceRejectsInvalidInput(t *testing.T) {
	p := newProducer(t)
	tests := []struct {
		name string
		req  capture.Request
	}{
		{"no photo", capture.Request{}},
		{"not an image", capture.Request{Photo: strings.NewReader("nope")}},
		{"latitude out of range", capture.Request{
			Photo:  bytes.NewReader(testsupport.JPEGBytes(t, 64, 64)),
			Coords: &evidence.Coords{Latitude: 91, Longitude: 0},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.Produce(context.Background(), tt.req); !errors.Is(err, evidence.ErrCaptureInvalid) {
				t.Fatalf("expected ErrCaptureInvalid, got %v", err)
			}
		})
	}
}
