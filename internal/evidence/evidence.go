package evidence

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrCaptureInvalid marks captures rejected before they reach the queue.
var ErrCaptureInvalid = errors.New("capture invalid")

// Coords is a WGS84 position.
type Coords struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Metadata travels with a capture to the uploader unchanged.
type Metadata struct {
	Address       string    `json:"address"`
	Coords        *Coords   `json:"coords,omitempty"`
	MapsURL       string    `json:"mapsUrl,omitempty"`
	DeviceTS      time.Time `json:"deviceTs"`
	Brand         string    `json:"brand,omitempty"`
	TenantID      string    `json:"tenantId,omitempty"`
	OwnerUID      string    `json:"ownerUid,omitempty"`
	OperatorLabel string    `json:"operatorLabel,omitempty"`
}

// Capture is one stamped photo awaiting upload.
type Capture struct {
	ID       string   `json:"id"`
	Payload  []byte   `json:"payload"`
	Metadata Metadata `json:"metadata"`
	// CreatedAt is set by the queue store on first insert.
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// NewID returns a fresh capture identifier.
func NewID() string {
	return uuid.NewString()
}

// MapsURL links a coordinate pair to Google Maps.
func MapsURL(lat, lon float64) string {
	return "https://www.google.com/maps?q=" + formatCoord(lat) + "," + formatCoord(lon)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Validate rejects captures that must never be queued.
func (c Capture) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return invalid("id is empty")
	}
	if len(c.Payload) == 0 {
		return invalid("payload is empty")
	}
	if coords := c.Metadata.Coords; coords != nil {
		if err := coords.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the coordinate ranges.
func (c Coords) Validate() error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return invalid(fmt.Sprintf("latitude %v out of range", c.Latitude))
	}
	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return invalid(fmt.Sprintf("longitude %v out of range", c.Longitude))
	}
	return nil
}

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrCaptureInvalid, reason)
}

// ObjectKey is the storage path for the capture's photo. It depends only on
// capture data so repeated uploads overwrite the same object.
func (c Capture) ObjectKey() string {
	tenant := pathSegment(c.Metadata.TenantID, "no-tenant")
	owner := pathSegment(c.Metadata.OwnerUID, "anonymous")
	ts := c.Metadata.DeviceTS
	if ts.IsZero() {
		ts = c.CreatedAt
	}
	return fmt.Sprintf("evidences/%s/%s/%d_%s.jpg", tenant, owner, ts.UnixMilli(), pathSegment(c.ID, "capture"))
}

func pathSegment(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\':
			return '_'
		}
		return r
	}, value)
}

// Summary is a payload-free view of a capture for listings.
type Summary struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	DeviceTS  time.Time `json:"deviceTs"`
	CreatedAt time.Time `json:"createdAt"`
	SizeBytes int       `json:"sizeBytes"`
}

// Summarize drops the payload.
func (c Capture) Summarize() Summary {
	return Summary{
		ID:        c.ID,
		Address:   c.Metadata.Address,
		DeviceTS:  c.Metadata.DeviceTS,
		CreatedAt: c.CreatedAt,
		SizeBytes: len(c.Payload),
	}
}
