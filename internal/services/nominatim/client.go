package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/time/rate"

	"checkproof/internal/config"
	"checkproof/internal/logging"
	"checkproof/internal/services"
)

const (
	defaultLanguage = "es-AR"
	noHouseNumber   = "s/n"
	line2Separator  = " – "
	maxErrorBody    = 2048
)

// HTTPDoer describes the HTTP client used by the geocoder.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Address is a two-line postal rendering of a position.
type Address struct {
	Line1 string `json:"line1"`
	Line2 string `json:"line2"`
}

// String joins both lines the way the stamp and metadata expect.
func (a Address) String() string {
	if a.Line2 == "" {
		return a.Line1
	}
	return a.Line1 + " — " + a.Line2
}

// Fallback renders raw coordinates when no address is available.
func Fallback(lat, lon float64) Address {
	return Address{Line1: "lat:" + formatCoord(lat) + ", lon:" + formatCoord(lon)}
}

// ResponseError carries a non-2xx reply or an unparseable body.
type ResponseError struct {
	Status int
	Body   []byte
}

func (e *ResponseError) Error() string {
	if e.Status != http.StatusOK {
		return fmt.Sprintf("nominatim returned %d", e.Status)
	}
	return "can not parse nominatim response"
}

// Client performs rate-limited reverse geocoding against a Nominatim instance.
type Client struct {
	baseURL   string
	language  string
	userAgent string
	client    HTTPDoer
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.client = doer
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "nominatim")
	}
}

// WithLimiter replaces the request rate limiter.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) {
		if limiter != nil {
			c.limiter = limiter
		}
	}
}

// New builds a client from the geocode configuration section.
func New(cfg config.Geocode, opts ...Option) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL:   strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		language:  canonicalLanguage(cfg.Language),
		userAgent: strings.TrimSpace(cfg.UserAgent),
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		logger:    logging.NewComponentLogger(nil, "nominatim"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type reverseResponse struct {
	Address struct {
		Road        string `json:"road"`
		Pedestrian  string `json:"pedestrian"`
		Residential string `json:"residential"`
		HouseNumber string `json:"house_number"`
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
		State       string `json:"state"`
	} `json:"address"`
}

// Reverse looks up the address for a coordinate pair.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (Address, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Address{}, services.Wrap(services.ErrTimeout, "nominatim", "rate limit", "", err)
	}

	query := url.Values{}
	query.Set("format", "jsonv2")
	query.Set("lat", formatCoord(lat))
	query.Set("lon", formatCoord(lon))
	query.Set("zoom", "18")
	query.Set("addressdetails", "1")
	endpoint := c.baseURL + "/reverse?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Address{}, services.Wrap(services.ErrConfiguration, "nominatim", "build request", "", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", c.language)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Address{}, services.Wrap(services.ErrTransient, "nominatim", "reverse", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Address{}, services.Wrap(services.ErrTransient, "nominatim", "reverse", "read body", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Address{}, services.Wrap(services.ErrExternalTool, "nominatim", "reverse", "", &ResponseError{Status: resp.StatusCode, Body: truncate(body)})
	}

	var payload reverseResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return Address{}, services.Wrap(services.ErrExternalTool, "nominatim", "reverse", "", &ResponseError{Status: resp.StatusCode, Body: truncate(body)})
	}

	a := payload.Address
	street := firstNonEmpty(a.Road, a.Pedestrian, a.Residential)
	number := firstNonEmpty(a.HouseNumber, noHouseNumber)
	line1 := joinNonEmpty(" ", street, number)
	if line1 == "" {
		line1 = Fallback(lat, lon).Line1
	}
	return Address{
		Line1: line1,
		Line2: joinNonEmpty(line2Separator, firstNonEmpty(a.City, a.Town, a.Village), a.State),
	}, nil
}

// Resolve never fails: lookup errors degrade to the coordinate fallback.
func (c *Client) Resolve(ctx context.Context, lat, lon float64) Address {
	addr, err := c.Reverse(ctx, lat, lon)
	if err != nil {
		logging.WarnWithContext(c.logger, "reverse geocoding failed; stamping coordinates", "geocode_failed",
			logging.Float64("lat", lat),
			logging.Float64("lon", lon),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check geocode.base_url and network access"),
			logging.String(logging.FieldImpact, "evidence shows coordinates instead of a street address"),
		)
		return Fallback(lat, lon)
	}
	return addr
}

func canonicalLanguage(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return defaultLanguage
	}
	tag, err := language.Parse(value)
	if err != nil {
		return defaultLanguage
	}
	return tag.String()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func joinNonEmpty(sep string, values ...string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, sep)
}

func truncate(body []byte) []byte {
	if len(body) > maxErrorBody {
		return body[:maxErrorBody]
	}
	return body
}
