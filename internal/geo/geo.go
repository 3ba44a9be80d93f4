// Package geo resolves where the device is into a short, human-readable place description.
package geo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/logging"
)

const DefaultTimeout = 10 * time.Second

var (
	LocationError = errors.New("location unavailable")

	// Both wrap LocationError.
	PermissionDenied = errors.Wrap(LocationError, "location permission denied")
	TimedOut         = errors.Wrap(LocationError, "location request timed out")
)

type Position struct {
	Latitude  float64
	Longitude float64
}

func (p Position) String() string {
	return fmt.Sprintf("%.6f, %.6f", p.Latitude, p.Longitude)
}

type PositionProvider interface {
	Position(ctx context.Context) (Position, error)
}

// FixedPosition reports a configured position. Without one it behaves like a provider the user
// has not granted access to.
type FixedPosition struct {
	pos *Position
}

func NewFixedPosition(pos *Position) *FixedPosition {
	return &FixedPosition{pos: pos}
}

func (f *FixedPosition) Position(ctx context.Context) (Position, error) {
	if err := ctx.Err(); err != nil {
		return Position{}, err
	}
	if f.pos == nil {
		return Position{}, PermissionDenied
	}
	return *f.pos, nil
}

// Address holds the parts of a geocoding result that make up a place description.
type Address struct {
	FeatureName string
	SubLocality string
	Locality    string
	AdminArea   string
	AddressLine string
}

type ReverseGeocoder interface {
	Reverse(ctx context.Context, pos Position) ([]Address, error)
}

// FormatAddress renders "at <feature>, <sublocality>, <locality>, <admin area>" from the
// non-blank parts, falling back to the full address line and then to the coordinates.
func FormatAddress(a Address, pos Position) string {
	var b strings.Builder
	if s := strings.TrimSpace(a.FeatureName); s != "" {
		b.WriteString("at " + s + ", ")
	}
	for _, part := range []string{a.SubLocality, a.Locality} {
		if s := strings.TrimSpace(part); s != "" {
			b.WriteString(s + ", ")
		}
	}
	if s := strings.TrimSpace(a.AdminArea); s != "" {
		b.WriteString(s)
	}

	if b.Len() == 0 {
		b.WriteString(strings.TrimSpace(a.AddressLine))
	}
	if b.Len() == 0 {
		b.WriteString(pos.String())
	}

	return strings.TrimSuffix(b.String(), ", ")
}

// CoordinatesOnly is the description used when geocoding is unavailable.
func CoordinatesOnly(pos Position) string {
	return "Location: " + pos.String()
}

type Locator struct {
	positions      PositionProvider
	geocoder       ReverseGeocoder
	timeout        time.Duration
	geocodeTimeout time.Duration
}

// NewLocator bounds the position lookup by timeout. geocoder may be nil, in which case only
// coordinates are reported.
func NewLocator(positions PositionProvider, geocoder ReverseGeocoder, timeout time.Duration) *Locator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Locator{
		positions:      positions,
		geocoder:       geocoder,
		timeout:        timeout,
		geocodeTimeout: timeout,
	}
}

// Describe finds the current position and describes it. Errors wrap LocationError; a failed
// reverse lookup is not an error and yields the coordinates instead.
func (l *Locator) Describe(ctx context.Context) (string, error) {
	logger := logging.For("geo")

	posCtx, cancel := context.WithTimeout(ctx, l.timeout)
	pos, err := l.positions.Position(posCtx)
	timedOut := errors.Is(posCtx.Err(), context.DeadlineExceeded)
	cancel()

	switch {
	case err == nil:
	case timedOut:
		return "", TimedOut
	case errors.Is(err, LocationError):
		return "", err
	default:
		return "", errors.Wrapf(LocationError, "%v", err)
	}

	if l.geocoder == nil {
		return CoordinatesOnly(pos), nil
	}

	geoCtx, cancel := context.WithTimeout(ctx, l.geocodeTimeout)
	defer cancel()

	addresses, err := l.geocoder.Reverse(geoCtx, pos)
	if err != nil {
		logger.WithError(err).Warn("Reverse geocoding failed")
		return CoordinatesOnly(pos), nil
	}
	if len(addresses) == 0 {
		return CoordinatesOnly(pos), nil
	}

	return FormatAddress(addresses[0], pos), nil
}
