package stamp_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"checkproof/internal/stamp"
	"checkproof/internal/testsupport"
)

func newRenderer(t *testing.T, opts stamp.Options) *stamp.Renderer {
	t.Helper()
	r, err := stamp.NewRenderer(opts)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return r
}

func TestRenderProducesJPEGOfSameSize(t *testing.T) {
	r := newRenderer(t, stamp.Options{Brand: "CheckProof", Watermark: true, MapQR: true, JPEGQuality: 92})
	out, err := r.Render(stamp.Input{
		Photo:   testsupport.NewPhoto(800, 600),
		Line1:   "Av. Corrientes 1234",
		Line2:   "Buenos Aires – Ciudad Autónoma de Buenos Aires",
		MapsURL: "https://www.google.com/maps?q=-34.6,-58.4",
		Time:    time.Date(2025, 6, 1, 10, 30, 0, 0, time.Local),
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img, err := imaging.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if img.Bounds().Dx() != 800 || img.Bounds().Dy() != 600 {
		t.Fatalf("unexpected output size %v", img.Bounds())
	}
}

func TestRenderRequiresPhoto(t *testing.T) {
	r := newRenderer(t, stamp.Options{})
	if _, err := r.Render(stamp.Input{}); !errors.Is(err, stamp.ErrNoPhoto) {
		t.Fatalf("expected ErrNoPhoto, got %v", err)
	}
}

func TestLayoutGeometry(t *testing.T) {
	r := newRenderer(t, stamp.Options{Brand: "CheckProof", Watermark: true, MapQR: true})
	at := time.Date(2025, 6, 1, 10, 30, 0, 0, time.Local)
	layout := r.Layout(1280, 720, stamp.Input{Line1: "Calle 1 s/n", Line2: "Rosario – Santa Fe", MapsURL: "https://maps", Time: at})

	if got := len(layout.Lines); got != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", got, layout.Lines)
	}
	if layout.Lines[2] != "2025-06-01 10:30:00" {
		t.Fatalf("unexpected timestamp line %q", layout.Lines[2])
	}
	box := layout.Box
	if box.X+box.W != 1280-18 || box.Y+box.H != 720-18 {
		t.Fatalf("box should sit 18px from the bottom-right corner: %+v", box)
	}
	if box.H != 16*2+3*32 {
		t.Fatalf("unexpected box height %v", box.H)
	}
	if !layout.HasQR || layout.QR != (stamp.Rect{X: 18, Y: 720 - 110 - 18, W: 110, H: 110}) {
		t.Fatalf("unexpected qr placement: %+v", layout.QR)
	}
	if layout.Watermark != 45 {
		t.Fatalf("expected watermark size floor(1280/28)=45, got %v", layout.Watermark)
	}
}

func TestLayoutDefaultsAndToggles(t *testing.T) {
	r := newRenderer(t, stamp.Options{Brand: "CheckProof"})
	layout := r.Layout(320, 240, stamp.Input{MapsURL: "https://maps"})
	if layout.Lines[0] != stamp.UnavailableAddress {
		t.Fatalf("expected unavailable address, got %q", layout.Lines[0])
	}
	if len(layout.Lines) != 2 {
		t.Fatalf("empty line2 must not add a line: %q", layout.Lines)
	}
	if layout.HasQR {
		t.Fatal("qr disabled by options")
	}
	if layout.Watermark != 0 {
		t.Fatal("watermark disabled by options")
	}

	small := newRenderer(t, stamp.Options{Brand: "B", Watermark: true})
	if got := small.Layout(320, 240, stamp.Input{}).Watermark; got != 22 {
		t.Fatalf("expected minimum watermark size 22, got %v", got)
	}
}

func TestLayoutWrapsLongAddress(t *testing.T) {
	r := newRenderer(t, stamp.Options{})
	long := strings.Repeat("Avenida ", 20)
	layout := r.Layout(640, 480, stamp.Input{Line1: long})
	if len(layout.Lines) < 3 {
		t.Fatalf("expected wrapped address, got %q", layout.Lines)
	}
	if layout.Box.W > 640*0.8+32 {
		t.Fatalf("box wider than 80%% of the image plus padding: %v", layout.Box.W)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := stamp.Decode(strings.NewReader("not an image")); err == nil {
		t.Fatal("expected decode error")
	}
}
