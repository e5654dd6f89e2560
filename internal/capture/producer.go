package capture

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"checkproof/internal/config"
	"checkproof/internal/evidence"
	"checkproof/internal/logging"
	"checkproof/internal/services/nominatim"
	"checkproof/internal/session"
	"checkproof/internal/stamp"
)

// Geocoder turns a position into a postal address. Implementations never fail;
// they degrade to a coordinate rendering.
type Geocoder interface {
	Resolve(ctx context.Context, lat, lon float64) nominatim.Address
}

// SessionInfo reports who is operating the device.
type SessionInfo interface {
	Info() session.Info
}

// Request describes one photo to turn into evidence.
type Request struct {
	Photo  io.Reader
	Coords *evidence.Coords
	// TakenAt defaults to now.
	TakenAt time.Time
	// Address skips geocoding when set.
	Address *nominatim.Address
	// Brand overrides capture.brand for this photo.
	Brand       string
	NoWatermark bool
}

// Option customizes a Producer.
type Option func(*Producer)

// WithGeocoder enables reverse geocoding.
func WithGeocoder(g Geocoder) Option {
	return func(p *Producer) {
		p.geocoder = g
	}
}

// WithSession attaches the operator session used to tag captures.
func WithSession(s SessionInfo) Option {
	return func(p *Producer) {
		p.session = s
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Producer) {
		p.logger = logging.NewComponentLogger(logger, "capture")
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Producer) {
		if now != nil {
			p.now = now
		}
	}
}

// Producer builds stamped captures ready for the queue manager.
type Producer struct {
	cfg      config.Capture
	geocoder Geocoder
	session  SessionInfo
	logger   *slog.Logger
	now      func() time.Time

	withWatermark    *stamp.Renderer
	withoutWatermark *stamp.Renderer
}

// NewProducer prepares renderers for the configured capture settings.
func NewProducer(cfg config.Capture, opts ...Option) (*Producer, error) {
	p := &Producer{
		cfg:    cfg,
		logger: logging.NewComponentLogger(nil, "capture"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	var err error
	if p.withWatermark, err = stamp.NewRenderer(p.stampOptions(cfg.Brand, cfg.Watermark)); err != nil {
		return nil, err
	}
	if p.withoutWatermark, err = stamp.NewRenderer(p.stampOptions(cfg.Brand, false)); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Producer) stampOptions(brand string, watermark bool) stamp.Options {
	return stamp.Options{
		Brand:       brand,
		Watermark:   watermark,
		MapQR:       p.cfg.MapQR,
		JPEGQuality: p.cfg.JPEGQuality,
	}
}

// Produce decodes, stamps and packages a photo. The result is validated
// before it is returned.
func (p *Producer) Produce(ctx context.Context, req Request) (evidence.Capture, error) {
	if req.Photo == nil {
		return evidence.Capture{}, fmt.Errorf("%w: no photo", evidence.ErrCaptureInvalid)
	}
	if req.Coords != nil {
		if err := req.Coords.Validate(); err != nil {
			return evidence.Capture{}, err
		}
	}
	img, err := stamp.Decode(req.Photo)
	if err != nil {
		return evidence.Capture{}, fmt.Errorf("%w: %w", evidence.ErrCaptureInvalid, err)
	}

	takenAt := req.TakenAt
	if takenAt.IsZero() {
		takenAt = p.now()
	}
	brand := strings.TrimSpace(req.Brand)
	if brand == "" {
		brand = p.cfg.Brand
	}

	address := p.address(ctx, req)
	mapsURL := ""
	if req.Coords != nil {
		mapsURL = evidence.MapsURL(req.Coords.Latitude, req.Coords.Longitude)
	}

	renderer := p.withWatermark
	if req.NoWatermark || !p.cfg.Watermark {
		renderer = p.withoutWatermark
	}
	if brand != p.cfg.Brand {
		custom, err := stamp.NewRenderer(p.stampOptions(brand, p.cfg.Watermark && !req.NoWatermark))
		if err != nil {
			return evidence.Capture{}, err
		}
		renderer = custom
	}

	payload, err := renderer.Render(stamp.Input{
		Photo:   img,
		Line1:   address.Line1,
		Line2:   address.Line2,
		MapsURL: mapsURL,
		Time:    takenAt,
	})
	if err != nil {
		return evidence.Capture{}, err
	}

	line1 := address.Line1
	if strings.TrimSpace(line1) == "" {
		line1 = stamp.UnavailableAddress
	}
	meta := evidence.Metadata{
		Address:  nominatim.Address{Line1: line1, Line2: address.Line2}.String(),
		Coords:   req.Coords,
		MapsURL:  mapsURL,
		DeviceTS: takenAt.UTC(),
		Brand:    brand,
	}
	if p.session != nil {
		info := p.session.Info()
		meta.TenantID = info.TenantID
		meta.OwnerUID = info.OperatorID
		meta.OperatorLabel = info.Label
	}

	captured := evidence.Capture{
		ID:       evidence.NewID(),
		Payload:  payload,
		Metadata: meta,
	}
	if err := captured.Validate(); err != nil {
		return evidence.Capture{}, err
	}
	p.logger.Debug("capture produced",
		logging.String(logging.FieldCaptureID, captured.ID),
		logging.Int("size_bytes", len(payload)),
		logging.Bool("geolocated", req.Coords != nil),
	)
	return captured, nil
}

func (p *Producer) address(ctx context.Context, req Request) nominatim.Address {
	switch {
	case req.Address != nil:
		return *req.Address
	case req.Coords == nil:
		return nominatim.Address{}
	case p.geocoder == nil:
		return nominatim.Fallback(req.Coords.Latitude, req.Coords.Longitude)
	default:
		return p.geocoder.Resolve(ctx, req.Coords.Latitude, req.Coords.Longitude)
	}
}
