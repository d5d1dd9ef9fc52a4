package views

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/mapharvest/internal/engine/scraper"
	"github.com/rendis/mapharvest/internal/model"
)

func build(t *testing.T, name, category, location string) model.Business {
	t.Helper()
	b, _ := model.NewBuilder().Name(name).Category(category).Location(location).Build()
	return b
}

func TestFilter_MatchesEveryWordIgnoringAccents(t *testing.T) {
	all := []model.Business{
		build(t, "Café Roma", "Coffee shop", "Rome"),
		build(t, "Bar Centrale", "Bar", "Rome"),
		build(t, "Crêperie", "Restaurant", "Paris"),
	}

	assert.Len(t, Filter(all, ""), 3)

	got := Filter(all, "cafe rome")
	require.Len(t, got, 1)
	name, _ := got[0].Name()
	assert.Equal(t, "Café Roma", name)

	assert.Len(t, Filter(all, "CREPERIE"), 1)
	assert.Empty(t, Filter(all, "rome paris"))
}

func TestCardLines(t *testing.T) {
	b, _ := model.NewBuilder().
		Name("Cafe Roma").
		Website("https://www.caferoma.com").
		ReviewsAverage(4.6).
		Coordinates(41.9, 12.48).
		Build()

	lines := cardLines(b)
	assert.Equal(t, "Cafe Roma", lines[0])
	assert.Contains(t, lines, "Website:   https://www.caferoma.com")
	assert.Contains(t, lines, "Rating:    4.6")
	assert.Contains(t, lines, "Coords:    41.900000, 12.480000")

	unnamed, _ := model.NewBuilder().Build()
	assert.Equal(t, "(no name)", cardLines(unnamed)[0])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
	assert.Equal(t, "é…", truncate("éééé", 2))
	assert.Equal(t, "", truncate("abc", 0))
}

func TestSharedState_Feed(t *testing.T) {
	s := &sharedState{stats: &scraper.Stats{TermsTotal: 1}}
	b := build(t, "Cafe Roma", "", "")

	s.onEvent(scraper.Event{Kind: scraper.EventTermStarted, Term: "cafes"})
	s.onEvent(scraper.Event{Kind: scraper.EventListings, Term: "cafes", Count: 20})
	s.onEvent(scraper.Event{Kind: scraper.EventListing, Index: 0, Business: b, Added: true})
	s.onEvent(scraper.Event{Kind: scraper.EventListing, Index: 1, Business: b, Added: false})
	s.onEvent(scraper.Event{Kind: scraper.EventSkipped, Index: 2, Err: errors.New("detached")})

	snap := s.snapshot()
	assert.Equal(t, "cafes", snap.term)
	assert.Equal(t, 20, snap.listings)
	assert.Equal(t, 2, snap.index)
	require.Len(t, snap.feed, 4)
	assert.False(t, snap.feed[1].dup)
	assert.True(t, snap.feed[2].dup)
	assert.Equal(t, "detached", snap.feed[3].text)

	for range 2 * feedSize {
		s.onEvent(scraper.Event{Kind: scraper.EventListing, Business: b, Added: true})
	}
	assert.Len(t, s.snapshot().feed, feedSize)
}

func TestCollectModel_DoneExposesResults(t *testing.T) {
	run := func(ctx context.Context, stats *scraper.Stats, onEvent func(scraper.Event)) ([]scraper.TermResult, error) {
		return nil, nil
	}
	m := NewCollectModel([]string{"cafes"}, run)

	results := []scraper.TermResult{{Term: "cafes", Added: 2, Total: 2, Files: []string{"/tmp/cafes.csv"}}}
	next, _ := m.Update(collectDoneMsg{Results: results, Err: context.Canceled})
	m = next.(CollectModel)

	got, err := m.Results()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, results, got)
	assert.Equal(t, "/tmp/cafes.csv", m.firstFile())
	assert.Equal(t, 1.0, m.percent(m.shared.snapshot()))
	assert.Contains(t, m.View(), "partial results saved")
}
