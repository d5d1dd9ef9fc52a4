package scraper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/mapharvest/internal/engine/extract"
	"github.com/rendis/mapharvest/internal/engine/storage"
	"github.com/rendis/mapharvest/internal/logging"
	"github.com/rendis/mapharvest/internal/model"
)

type place struct {
	name, domain, phone, address, plus string
	lat, lng                           string
}

func (p place) page() extract.Page {
	var sb strings.Builder
	sb.WriteString(`<html><body><h1 class="DUwDvf">` + p.name + `</h1>`)
	if p.address != "" {
		sb.WriteString(`<button data-item-id="address"><div class="fontBodyMedium">` + p.address + `</div></button>`)
	}
	if p.domain != "" {
		sb.WriteString(`<a data-item-id="authority"><div class="fontBodyMedium">` + p.domain + `</div></a>`)
	}
	if p.phone != "" {
		sb.WriteString(`<button data-item-id="phone:tel:` + p.phone + `"><div class="fontBodyMedium">` + p.phone + `</div></button>`)
	}
	if p.plus != "" {
		sb.WriteString(`<button data-item-id="oloc"><div class="fontBodyMedium">` + p.plus + `</div></button>`)
	}
	sb.WriteString(`</body></html>`)

	u := "https://www.google.com/maps/place/" + p.name
	if p.lat != "" {
		u += "/data=!3d" + p.lat + "!4d" + p.lng
	}
	return extract.Page{HTML: sb.String(), URL: u}
}

type fakeDriver struct {
	places    map[string][]place
	failOpen  map[string]bool
	searchErr error
	current   string
	opened    []string
	onOpen    func(href string)
}

func (f *fakeDriver) Search(_ context.Context, term string) error {
	f.current = term
	return f.searchErr
}

func (f *fakeDriver) Listings(_ context.Context, limit int) ([]string, error) {
	var hrefs []string
	for i := range f.places[f.current] {
		hrefs = append(hrefs, fmt.Sprintf("%s#%d", f.current, i))
	}
	if limit > 0 && len(hrefs) > limit {
		hrefs = hrefs[:limit]
	}
	return hrefs, nil
}

func (f *fakeDriver) Open(_ context.Context, href string) (extract.Page, error) {
	f.opened = append(f.opened, href)
	if f.onOpen != nil {
		f.onOpen(href)
	}
	if f.failOpen[href] {
		return extract.Page{}, errors.New("element detached")
	}
	var i int
	term, idx, _ := strings.Cut(href, "#")
	fmt.Sscanf(idx, "%d", &i)
	return f.places[term][i].page(), nil
}

func setup(t *testing.T) (storage.Layout, *storage.Loader, *storage.Saver) {
	t.Helper()
	layout := storage.NewLayout(t.TempDir(), time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))
	logger := logging.Discard()
	return layout, &storage.Loader{Layout: layout, Logger: logger}, storage.NewSaver(layout, logger)
}

var romeCafes = []place{
	{name: "Cafe Roma", domain: "caferoma.com", lat: "41.9", lng: "12.48"},
	{name: "Bar Centrale", phone: "+39 06 123"},
	{name: "Cafe Roma", domain: "caferoma.com", address: "another entrance"},
	{name: "Cafe Roma", domain: "caferoma2.com"},
}

func TestRun_DedupAndSave(t *testing.T) {
	layout, loader, saver := setup(t)
	d := &fakeDriver{places: map[string][]place{"cafes in Rome": romeCafes}}

	var events []EventKind
	results, err := Run(context.Background(), d, []string{"cafes in Rome"}, loader, saver, logging.Discard(),
		&RunOptions{SuppressStderr: true, OnEvent: func(e Event) { events = append(events, e.Kind) }})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, 0, r.Loaded)
	assert.Equal(t, 4, r.Listings)
	assert.Equal(t, 4, r.Scraped)
	assert.Equal(t, 3, r.Added)
	assert.Equal(t, 1, r.Duplicates)
	assert.Equal(t, 3, r.Total)
	require.Len(t, r.Files, 2)
	assert.Equal(t, layout.Path("cafes in Rome", ".csv"), r.Files[0])
	assert.Equal(t, layout.Path("cafes in Rome", ".xlsx"), r.Files[1])

	saved, _, err := storage.ReadCSV(r.Files[0])
	require.NoError(t, err)
	require.Len(t, saved, 3)
	loc, _ := saved[0].Location()
	assert.Equal(t, "Rome", loc)
	lat, ok := saved[0].Latitude()
	require.True(t, ok)
	assert.Equal(t, 41.9, lat)

	assert.Equal(t, EventTermStarted, events[0])
	assert.Equal(t, EventTermDone, events[len(events)-1])
	assert.Contains(t, events, EventSaved)
}

func TestRun_SecondRunIsIdempotent(t *testing.T) {
	_, loader, saver := setup(t)
	terms := []string{"cafes in Rome"}
	opts := &RunOptions{SuppressStderr: true}

	first, err := Run(context.Background(), &fakeDriver{places: map[string][]place{"cafes in Rome": romeCafes}}, terms, loader, saver, logging.Discard(), opts)
	require.NoError(t, err)
	before, err := os.ReadFile(first[0].Files[0])
	require.NoError(t, err)

	second, err := Run(context.Background(), &fakeDriver{places: map[string][]place{"cafes in Rome": romeCafes}}, terms, loader, saver, logging.Discard(), opts)
	require.NoError(t, err)
	assert.Equal(t, 3, second[0].Loaded)
	assert.Zero(t, second[0].Added)
	assert.Equal(t, 4, second[0].Duplicates)

	after, err := os.ReadFile(second[0].Files[0])
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestRun_LoadedRecordsComeFirst(t *testing.T) {
	_, loader, saver := setup(t)
	opts := &RunOptions{SuppressStderr: true}

	_, err := Run(context.Background(), &fakeDriver{places: map[string][]place{"bars": {{name: "Old One"}, {name: "Old Two"}}}},
		[]string{"bars"}, loader, saver, logging.Discard(), opts)
	require.NoError(t, err)

	res, err := Run(context.Background(), &fakeDriver{places: map[string][]place{"bars": {{name: "New"}, {name: "Old Two"}}}},
		[]string{"bars"}, loader, saver, logging.Discard(), opts)
	require.NoError(t, err)

	saved, _, err := storage.ReadCSV(res[0].Files[0])
	require.NoError(t, err)
	var names []string
	for _, b := range saved {
		n, _ := b.Name()
		names = append(names, n)
	}
	assert.Equal(t, []string{"Old One", "Old Two", "New"}, names)
}

func TestRun_SkipsFailingListing(t *testing.T) {
	_, loader, saver := setup(t)
	d := &fakeDriver{
		places:   map[string][]place{"t": {{name: "A"}, {name: "B"}, {name: "C"}}},
		failOpen: map[string]bool{"t#1": true},
	}

	res, err := Run(context.Background(), d, []string{"t"}, loader, saver, logging.Discard(), &RunOptions{SuppressStderr: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res[0].Skipped)
	assert.Equal(t, 2, res[0].Added)
	assert.Equal(t, []string{"t#0", "t#1", "t#2"}, d.opened)
}

func TestRun_TotalCapsListings(t *testing.T) {
	_, loader, saver := setup(t)
	d := &fakeDriver{places: map[string][]place{"t": {{name: "A"}, {name: "B"}, {name: "C"}}}}

	res, err := Run(context.Background(), d, []string{"t"}, loader, saver, logging.Discard(), &RunOptions{SuppressStderr: true, Total: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res[0].Listings)
	assert.Equal(t, 2, res[0].Total)
}

func TestRun_SearchFailureMovesOn(t *testing.T) {
	layout, loader, saver := setup(t)
	d := &fakeDriver{searchErr: errors.New("timeout")}

	res, err := Run(context.Background(), d, []string{"a", "b"}, loader, saver, logging.Discard(), &RunOptions{SuppressStderr: true})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Error(t, res[0].Err)
	assert.Empty(t, res[0].Files)
	assert.NoFileExists(t, layout.Path("a", ".csv"))
}

func TestRun_CancelStillSaves(t *testing.T) {
	_, loader, saver := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := &fakeDriver{places: map[string][]place{
		"t":     {{name: "A"}, {name: "B"}, {name: "C"}},
		"later": {{name: "Z"}},
	}}
	d.onOpen = func(href string) {
		if href == "t#1" {
			cancel()
		}
	}

	res, err := Run(ctx, d, []string{"t", "later"}, loader, saver, logging.Discard(), &RunOptions{SuppressStderr: true})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, res, 1)
	assert.Equal(t, 2, res[0].Added)
	require.NotEmpty(t, res[0].Files)

	saved, _, err := storage.ReadCSV(res[0].Files[0])
	require.NoError(t, err)
	assert.Len(t, saved, 2)
}

type failingSaver struct{}

func (failingSaver) Save(context.Context, string, []model.Business) ([]string, error) {
	return nil, errors.New("disk full")
}

func TestRun_PrimarySaveFailureAborts(t *testing.T) {
	_, loader, _ := setup(t)
	d := &fakeDriver{places: map[string][]place{"a": {{name: "A"}}, "b": {{name: "B"}}}}

	res, err := Run(context.Background(), d, []string{"a", "b"}, loader, failingSaver{}, logging.Discard(), &RunOptions{SuppressStderr: true})
	require.ErrorContains(t, err, "disk full")
	assert.Len(t, res, 1)
}

type pinGeocoder struct{}

func (pinGeocoder) Locate(context.Context, string, string) (orb.Point, error) {
	return orb.Point{12.5, 41.8}, nil
}

func TestRun_GeocodesPlusCodeWithoutPin(t *testing.T) {
	_, loader, saver := setup(t)
	d := &fakeDriver{places: map[string][]place{"t": {{name: "A", plus: "GC2Q+3V Rome"}}}}

	res, err := Run(context.Background(), d, []string{"t"}, loader, saver, logging.Discard(),
		&RunOptions{SuppressStderr: true, Geocoder: pinGeocoder{}})
	require.NoError(t, err)

	saved, _, err := storage.ReadCSV(res[0].Files[0])
	require.NoError(t, err)
	lat, ok := saved[0].Latitude()
	require.True(t, ok)
	assert.Equal(t, 41.8, lat)
}

func TestLocate_HalfCoordinatesAreFilled(t *testing.T) {
	half, _ := model.NewBuilder().
		Name("A").
		Set(model.FieldLatitude, "41.9").
		PlusCode("8FHJVHXV+5V").
		Build()

	got := locate(context.Background(), pinGeocoder{}, half, logging.Discard())
	lng, ok := got.Longitude()
	require.True(t, ok)
	assert.Equal(t, 12.5, lng)

	full, _ := model.NewBuilder().Name("B").Coordinates(1, 2).PlusCode("8FHJVHXV+5V").Build()
	got = locate(context.Background(), pinGeocoder{}, full, logging.Discard())
	lat, _ := got.Latitude()
	assert.Equal(t, 1.0, lat, "a complete pair is left alone")
}

func TestSummary(t *testing.T) {
	var sb strings.Builder
	Summary(&sb, []TermResult{{Term: "cafes", Loaded: 2, Added: 1, Total: 3, Files: []string{"x.csv"}}})
	out := sb.String()
	assert.Contains(t, out, `"cafes"`)
	assert.Contains(t, out, "Records previously saved: 2")
	assert.Contains(t, out, "New unique records added: 1")
	assert.Contains(t, out, "Total records in file: 3")
	assert.Contains(t, out, "File updated: x.csv")
}
