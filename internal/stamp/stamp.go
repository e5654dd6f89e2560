package stamp

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/text/unicode/norm"
)

// UnavailableAddress is stamped when no address line is known.
const UnavailableAddress = "Dirección no disponible"

// TimestampLayout formats the capture time on the stamp.
const TimestampLayout = "2006-01-02 15:04:05"

const (
	outerPad     = 18
	innerPad     = 16
	lineHeight   = 32
	stampFontPt  = 28
	qrSize       = 110
	maxTextRatio = 0.80
	boxAlpha     = 0.55

	watermarkAlpha   = 0.25
	watermarkMinSize = 22
	watermarkDivisor = 28
)

// ErrNoPhoto is returned when Render is called without an image.
var ErrNoPhoto = errors.New("no photo to stamp")

// Options controls what gets drawn.
type Options struct {
	Brand       string
	Watermark   bool
	MapQR       bool
	JPEGQuality int
}

// Input is one photo plus the text to stamp on it.
type Input struct {
	Photo   image.Image
	Line1   string
	Line2   string
	MapsURL string
	Time    time.Time
}

// Rect is an axis-aligned box in image pixels.
type Rect struct {
	X, Y, W, H float64
}

// Layout describes where each element lands for a given image size.
type Layout struct {
	Lines     []string
	Box       Rect
	QR        Rect
	HasQR     bool
	Watermark float64
}

// Renderer draws stamps. It is safe for concurrent use.
type Renderer struct {
	opts Options
	font *truetype.Font
}

// NewRenderer parses the embedded monospace font.
func NewRenderer(opts Options) (*Renderer, error) {
	parsed, err := truetype.Parse(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = 92
	}
	return &Renderer{opts: opts, font: parsed}, nil
}

func (r *Renderer) face(size float64) font.Face {
	return truetype.NewFace(r.font, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingFull})
}

// Decode reads a photo, applying EXIF orientation.
func Decode(src io.Reader) (image.Image, error) {
	img, err := imaging.Decode(src, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode photo: %w", err)
	}
	return img, nil
}

// Layout computes element positions without drawing.
func (r *Renderer) Layout(width, height int, in Input) Layout {
	dc := gg.NewContext(1, 1)
	face := r.face(stampFontPt)
	defer face.Close()
	dc.SetFontFace(face)
	return r.layout(dc, width, height, in)
}

func (r *Renderer) layout(dc *gg.Context, width, height int, in Input) Layout {
	line1 := norm.NFC.String(strings.TrimSpace(in.Line1))
	if line1 == "" {
		line1 = UnavailableAddress
	}
	line2 := norm.NFC.String(strings.TrimSpace(in.Line2))

	maxText := math.Floor(float64(width) * maxTextRatio)
	lines := wrap(dc, line1, maxText)
	if line2 != "" {
		lines = append(lines, wrap(dc, line2, maxText)...)
	}
	lines = append(lines, stampTime(in.Time))

	longest := 0.0
	for _, line := range lines {
		w, _ := dc.MeasureString(line)
		longest = math.Max(longest, w)
	}
	boxW := math.Ceil(math.Min(maxText, longest)) + innerPad*2
	boxH := float64(innerPad*2 + len(lines)*lineHeight)

	out := Layout{
		Lines: lines,
		Box: Rect{
			X: float64(width) - boxW - outerPad,
			Y: float64(height) - boxH - outerPad,
			W: boxW,
			H: boxH,
		},
	}
	if r.opts.MapQR && in.MapsURL != "" {
		out.HasQR = true
		out.QR = Rect{X: outerPad, Y: float64(height - qrSize - outerPad), W: qrSize, H: qrSize}
	}
	if r.opts.Watermark && strings.TrimSpace(r.opts.Brand) != "" {
		out.Watermark = math.Max(watermarkMinSize, math.Floor(float64(width)/watermarkDivisor))
	}
	return out
}

// Render draws watermark, map QR and address stamp over the photo and
// returns the JPEG bytes.
func (r *Renderer) Render(in Input) ([]byte, error) {
	if in.Photo == nil {
		return nil, ErrNoPhoto
	}
	bounds := in.Photo.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	dc := gg.NewContextForImage(in.Photo)
	stampFace := r.face(stampFontPt)
	defer stampFace.Close()
	dc.SetFontFace(stampFace)
	layout := r.layout(dc, width, height, in)

	if layout.Watermark > 0 {
		wmFace := r.face(layout.Watermark)
		dc.SetFontFace(wmFace)
		dc.SetRGBA(1, 1, 1, watermarkAlpha)
		dc.DrawStringAnchored(r.opts.Brand, outerPad, outerPad, 0, 1)
		wmFace.Close()
		dc.SetFontFace(stampFace)
	}

	if layout.HasQR {
		code, err := qrcode.New(in.MapsURL, qrcode.Medium)
		if err != nil {
			return nil, fmt.Errorf("encode map qr: %w", err)
		}
		code.DisableBorder = true
		dc.DrawImage(code.Image(qrSize), int(layout.QR.X), int(layout.QR.Y))
	}

	box := layout.Box
	dc.SetRGBA(0, 0, 0, boxAlpha)
	dc.DrawRectangle(box.X, box.Y, box.W, box.H)
	dc.Fill()
	dc.SetRGB(1, 1, 1)
	y := box.Y + innerPad + lineHeight
	for _, line := range layout.Lines {
		dc.DrawString(line, box.X+innerPad, y)
		y += lineHeight
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, dc.Image(), imaging.JPEG, imaging.JPEGQuality(r.opts.JPEGQuality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func stampTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Local().Format(TimestampLayout)
}

// wrap breaks text on spaces so no line exceeds maxWidth, except a single
// word that is wider on its own.
func wrap(dc *gg.Context, text string, maxWidth float64) []string {
	words := strings.Split(text, " ")
	var lines []string
	line := ""
	for i, word := range words {
		candidate := word
		if line != "" {
			candidate = line + " " + word
		}
		if w, _ := dc.MeasureString(candidate); w > maxWidth && i > 0 {
			lines = append(lines, line)
			line = word
			continue
		}
		line = candidate
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}
