package geo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	olc "github.com/google/open-location-code/go"
	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// DefaultMaxDistance is how far, in meters, a recovered short code may land
// from its reference locality before it is rejected.
const DefaultMaxDistance = 50_000

var (
	ErrInvalidCode = errors.New("invalid plus code")
	ErrNoReference = errors.New("short plus code without reference locality")
	ErrTooFar      = errors.New("plus code too far from reference locality")
)

var world = orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}

// Geocoder locates a plus code, optionally qualified by a locality.
type Geocoder interface {
	Locate(ctx context.Context, plusCode, reference string) (orb.Point, error)
}

// PlusCodeGeocoder decodes Open Location Codes. Full codes decode offline;
// short codes are recovered relative to the reference locality, which is
// resolved through Resolver.
type PlusCodeGeocoder struct {
	Resolver    PlaceResolver
	MaxDistance float64
}

func (g *PlusCodeGeocoder) Locate(ctx context.Context, plusCode, reference string) (orb.Point, error) {
	code := strings.ToUpper(strings.TrimSpace(plusCode))

	if olc.CheckFull(code) == nil {
		return decode(code)
	}
	if olc.CheckShort(code) != nil {
		return orb.Point{}, fmt.Errorf("%w: %q", ErrInvalidCode, plusCode)
	}

	reference = strings.TrimSpace(reference)
	if reference == "" || g.Resolver == nil {
		return orb.Point{}, fmt.Errorf("%w: %q", ErrNoReference, plusCode)
	}

	place, err := g.Resolver.Resolve(ctx, reference)
	if err != nil {
		return orb.Point{}, fmt.Errorf("resolving %q: %w", reference, err)
	}

	full, err := olc.RecoverNearest(code, place.Point.Lat(), place.Point.Lon())
	if err != nil {
		return orb.Point{}, fmt.Errorf("%w: %v", ErrInvalidCode, err)
	}
	pt, err := decode(full)
	if err != nil {
		return orb.Point{}, err
	}

	limit := g.MaxDistance
	if limit <= 0 {
		limit = DefaultMaxDistance
	}
	if d := orbgeo.Distance(pt, place.Point); d > limit {
		return orb.Point{}, fmt.Errorf("%w: %.0f m from %s", ErrTooFar, d, reference)
	}
	return pt, nil
}

func decode(code string) (orb.Point, error) {
	area, err := olc.Decode(code)
	if err != nil {
		return orb.Point{}, fmt.Errorf("%w: %v", ErrInvalidCode, err)
	}
	lat, lng := area.Center()
	return orb.Point{lng, lat}, nil
}

// SplitPlusCode separates the code from the locality Maps prints after it,
// e.g. "GC2Q+3V Rome, Italy" yields ("GC2Q+3V", "Rome, Italy").
func SplitPlusCode(raw string) (code, reference string) {
	raw = strings.TrimSpace(raw)
	first, rest, _ := strings.Cut(raw, " ")
	if !strings.Contains(first, "+") {
		return "", raw
	}
	return first, strings.Trim(strings.TrimSpace(rest), ",")
}

// ValidPoint reports whether p is a usable WGS84 coordinate. The origin is
// treated as a decoding failure.
func ValidPoint(p orb.Point) bool {
	if p == (orb.Point{}) {
		return false
	}
	return world.Contains(p)
}
