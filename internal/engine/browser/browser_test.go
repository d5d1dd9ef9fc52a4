package browser

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchURL(t *testing.T) {
	assert.Equal(t,
		"https://www.google.com/maps/search/cafes%20in%20Rome?hl=en-GB",
		SearchURL("  cafes in Rome ", "en-GB"))
	assert.Equal(t,
		"https://www.google.com/maps/search/bars%2Fpubs",
		SearchURL("bars/pubs", ""))
}

func TestJitter(t *testing.T) {
	for range 100 {
		d := Jitter(10*time.Millisecond, 20*time.Millisecond)
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.LessOrEqual(t, d, 20*time.Millisecond)
	}
	assert.Equal(t, 5*time.Millisecond, Jitter(5*time.Millisecond, time.Millisecond))
}

func TestCapped(t *testing.T) {
	hrefs := []string{"a", "b", "c"}
	assert.Equal(t, []string{"a", "b"}, capped(hrefs, 2))
	assert.Equal(t, hrefs, capped(hrefs, 0))
	assert.Equal(t, hrefs, capped(hrefs, 10))
}

func TestIsPlaceURL(t *testing.T) {
	assert.True(t, IsPlaceURL("https://www.google.com/maps/place/Cafe+Roma/@41.9,12.4,17z"))
	assert.False(t, IsPlaceURL("https://www.google.com/maps/search/cafes"))
}

// Needs a local Chrome and network access.
func TestBrowser_Live(t *testing.T) {
	if os.Getenv("MAPHARVEST_TEST_CHROME") == "" {
		t.Skip("MAPHARVEST_TEST_CHROME not set")
	}

	b, err := New(DefaultOptions())
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, b.Search(ctx, "coffee in Rome"))
	hrefs, err := b.Listings(ctx, 3)
	require.NoError(t, err)
	require.NotEmpty(t, hrefs)
	assert.LessOrEqual(t, len(hrefs), 3)

	page, err := b.Open(ctx, hrefs[0])
	require.NoError(t, err)
	assert.Contains(t, page.HTML, "DUwDvf")
}
