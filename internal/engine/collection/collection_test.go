package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/mapharvest/internal/model"
)

func business(t *testing.T, fields map[model.Field]string) model.Business {
	t.Helper()
	bb := model.NewBuilder()
	for f, v := range fields {
		bb.Set(f, v)
	}
	b, report := bb.Build()
	require.Empty(t, report.Failed())
	return b
}

func TestCollection_SeededDuplicateRejected(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.Seed([]model.Business{
		business(t, map[model.Field]string{model.FieldName: "Cafe Roma", model.FieldDomain: "caferoma.com"}),
	}))

	added := c.Insert(business(t, map[model.Field]string{
		model.FieldName:    "Cafe Roma",
		model.FieldDomain:  "caferoma.com",
		model.FieldAddress: "different address text",
	}))

	assert.False(t, added)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 0, c.Added())
	assert.Equal(t, 1, c.Seeded())
}

func TestCollection_DistinctDomainsAccepted(t *testing.T) {
	c := New(nil)

	assert.True(t, c.Insert(business(t, map[model.Field]string{model.FieldName: "Cafe Roma", model.FieldDomain: "caferoma.com"})))
	assert.True(t, c.Insert(business(t, map[model.Field]string{model.FieldName: "Cafe Roma", model.FieldDomain: "caferoma2.com"})))
	assert.Equal(t, 2, c.Len())
}

func TestCollection_FingerprintIgnoresSoftFields(t *testing.T) {
	base := map[model.Field]string{
		model.FieldName:     "Bäckerei Kamps",
		model.FieldDomain:   "kamps.de",
		model.FieldWebsite:  "https://www.kamps.de",
		model.FieldPhone:    "030 1234567",
		model.FieldPlusCode: "GC2Q+3V Berlin",
	}
	c := New(nil)
	require.True(t, c.Insert(business(t, base)))

	variants := []map[model.Field]string{
		{model.FieldAddress: "Alexanderplatz 1"},
		{model.FieldCategory: "Bakery", model.FieldReviewsCount: "300"},
		{model.FieldReviewsAverage: "4.1", model.FieldLocation: "Berlin"},
	}
	for _, extra := range variants {
		fields := map[model.Field]string{}
		for k, v := range base {
			fields[k] = v
		}
		for k, v := range extra {
			fields[k] = v
		}
		assert.False(t, c.Insert(business(t, fields)))
	}
	assert.Equal(t, 1, c.Len())
}

func TestCollection_MissingNameDiffersFromLiteralNone(t *testing.T) {
	c := New(nil)

	assert.True(t, c.Insert(business(t, map[model.Field]string{})))
	assert.True(t, c.Insert(business(t, map[model.Field]string{model.FieldName: "None"})))
	// Two unnamed records without identifiers are indistinguishable.
	assert.False(t, c.Insert(business(t, map[model.Field]string{model.FieldAddress: "Somewhere"})))
}

func TestCollection_StrictPolicySeparatesByAddress(t *testing.T) {
	a := business(t, map[model.Field]string{model.FieldName: "Kiosk", model.FieldAddress: "Hauptstr. 1"})
	b := business(t, map[model.Field]string{model.FieldName: "Kiosk", model.FieldAddress: "Bahnhofstr. 9"})

	def := New(DefaultPolicy)
	assert.True(t, def.Insert(a))
	assert.False(t, def.Insert(b))

	strict := New(StrictPolicy)
	assert.True(t, strict.Insert(a))
	assert.True(t, strict.Insert(b))
}

func TestCollection_OrderPreserved(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.Seed([]model.Business{
		business(t, map[model.Field]string{model.FieldName: "old-1"}),
		business(t, map[model.Field]string{model.FieldName: "old-2"}),
	}))
	c.Insert(business(t, map[model.Field]string{model.FieldName: "new-1"}))
	c.Insert(business(t, map[model.Field]string{model.FieldName: "old-1"}))
	c.Insert(business(t, map[model.Field]string{model.FieldName: "new-2"}))

	var names []string
	for _, b := range c.Businesses() {
		n, _ := b.Name()
		names = append(names, n)
	}
	assert.Equal(t, []string{"old-1", "old-2", "new-1", "new-2"}, names)
	assert.Equal(t, 2, c.Added())
}

func TestCollection_SeedOnlyOnce(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.Seed(nil))
	assert.ErrorIs(t, c.Seed(nil), ErrAlreadySeeded)

	c2 := New(nil)
	c2.Insert(business(t, map[model.Field]string{model.FieldName: "x"}))
	assert.ErrorIs(t, c2.Seed(nil), ErrAlreadySeeded)
}

func TestCollection_RowsNameOnly(t *testing.T) {
	c := New(nil)
	c.Insert(business(t, map[model.Field]string{model.FieldName: "Solo"}))

	rows := c.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, model.Header(), rows[0])
	assert.Equal(t, "Solo", rows[1][0])
	for _, cell := range rows[1][1:] {
		assert.Empty(t, cell)
	}
}

func TestPolicy_FingerprintDeterministic(t *testing.T) {
	b := business(t, map[model.Field]string{model.FieldName: "A", model.FieldPhone: "1"})
	assert.Equal(t, DefaultPolicy.Fingerprint(b), DefaultPolicy.Fingerprint(b))
	assert.Equal(t, Fingerprint(`("A","phone:1")`), DefaultPolicy.Fingerprint(b))
}
