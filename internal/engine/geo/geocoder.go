package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"golang.org/x/time/rate"
)

const DefaultNominatimURL = "https://nominatim.openstreetmap.org/search"

var ErrPlaceNotFound = errors.New("place not found")

// Fetcher performs a GET and returns the body. httpx.Client satisfies it.
type Fetcher interface {
	Get(ctx context.Context, reqURL string) ([]byte, error)
}

// Place is a resolved locality.
type Place struct {
	Point       orb.Point
	Bound       orb.Bound
	DisplayName string
}

// PlaceResolver turns a free-text locality into coordinates.
type PlaceResolver interface {
	Resolve(ctx context.Context, query string) (Place, error)
}

type nominatimResult struct {
	Lat         string   `json:"lat"`
	Lon         string   `json:"lon"`
	BoundingBox []string `json:"boundingbox"` // [minLat, maxLat, minLng, maxLng]
	DisplayName string   `json:"display_name"`
}

// Nominatim resolves places through the OSM Nominatim API. Requests are
// throttled to the public usage policy and answers are cached per query.
type Nominatim struct {
	client  Fetcher
	baseURL string
	limiter *rate.Limiter

	mu    sync.Mutex
	cache map[string]Place
}

func NewNominatim(client Fetcher, baseURL string) *Nominatim {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	return &Nominatim{
		client:  client,
		baseURL: baseURL,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		cache:   make(map[string]Place),
	}
}

func (n *Nominatim) Resolve(ctx context.Context, query string) (Place, error) {
	key := strings.ToLower(strings.TrimSpace(query))
	if key == "" {
		return Place{}, fmt.Errorf("%w: empty query", ErrPlaceNotFound)
	}

	n.mu.Lock()
	p, ok := n.cache[key]
	n.mu.Unlock()
	if ok {
		return p, nil
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return Place{}, err
	}

	u := n.baseURL + "?" + url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {"1"},
	}.Encode()

	body, err := n.client.Get(ctx, u)
	if err != nil {
		return Place{}, fmt.Errorf("geocoding request failed: %w", err)
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return Place{}, fmt.Errorf("decoding geocoding response: %w", err)
	}
	if len(results) == 0 {
		return Place{}, fmt.Errorf("%w: %q", ErrPlaceNotFound, query)
	}

	p, err = results[0].place()
	if err != nil {
		return Place{}, err
	}

	n.mu.Lock()
	n.cache[key] = p
	n.mu.Unlock()
	return p, nil
}

func (r nominatimResult) place() (Place, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return Place{}, fmt.Errorf("invalid latitude %q from geocoder", r.Lat)
	}
	lng, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return Place{}, fmt.Errorf("invalid longitude %q from geocoder", r.Lon)
	}

	pt := orb.Point{lng, lat} // orb.Point is [lng, lat]
	p := Place{Point: pt, Bound: pt.Bound(), DisplayName: r.DisplayName}

	bb := r.BoundingBox
	if len(bb) == 4 {
		minLat, e1 := strconv.ParseFloat(bb[0], 64)
		maxLat, e2 := strconv.ParseFloat(bb[1], 64)
		minLng, e3 := strconv.ParseFloat(bb[2], 64)
		maxLng, e4 := strconv.ParseFloat(bb[3], 64)
		if e1 == nil && e2 == nil && e3 == nil && e4 == nil {
			p.Bound = orb.Bound{Min: orb.Point{minLng, minLat}, Max: orb.Point{maxLng, maxLat}}
		}
	}
	return p, nil
}
