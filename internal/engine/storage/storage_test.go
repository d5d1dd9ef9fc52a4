package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/mapharvest/internal/logging"
	"github.com/rendis/mapharvest/internal/model"
)

func sample(t *testing.T) []model.Business {
	t.Helper()
	roma, _ := model.NewBuilder().
		Name("Cafe Roma").
		Address("Via del Corso 12, Roma").
		Domain("caferoma.com").
		Website("https://www.caferoma.com").
		Phone("+39 06 1234567").
		Category("Cafe").
		Location("Rome").
		ReviewsCount(1204).
		ReviewsAverage(4.6).
		Coordinates(41.9028, 12.4964).
		PlusCode("GC2Q+3V Roma").
		Build()
	kiosk, _ := model.NewBuilder().Name("Kiosk, \"Nord\"").Build()
	return []model.Business{roma, kiosk}
}

func testLayout(t *testing.T) Layout {
	t.Helper()
	return NewLayout(t.TempDir(), time.Date(2025, 12, 12, 0, 0, 0, 0, time.UTC))
}

func TestLayout_Paths(t *testing.T) {
	l := NewLayout("GMaps Data", time.Date(2025, 12, 12, 9, 0, 0, 0, time.UTC))

	assert.Equal(t, filepath.Join("GMaps Data", "2025-12-12"), l.Dir())
	assert.Equal(t, filepath.Join("GMaps Data", "2025-12-12", "supermarkets_in_Berlin.csv"), l.Path(" supermarkets in Berlin\n", ".csv"))
	assert.Equal(t, "a_b", BaseName("a/b"))
	assert.Equal(t, "_", BaseName(".."))
}

func TestCSV_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roundtrip.csv")
	want := sample(t)

	require.NoError(t, WriteCSV(path, want))
	got, warnings, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, want, got)
}

func TestReadCSV_DropsIndexColumnsAndMissingCells(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pandas.csv")
	content := "Unnamed: 0,name,reviews_count,reviews_average,domain\n" +
		"0,Cafe Roma,87.0,4.5,caferoma.com\n" +
		"1,Kiosk,,NaN,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	got, warnings, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, got, 2)

	n, ok := got[0].ReviewsCount()
	assert.True(t, ok)
	assert.Equal(t, 87, n)

	_, ok = got[1].ReviewsCount()
	assert.False(t, ok, "missing count stays absent")
	_, ok = got[1].ReviewsAverage()
	assert.False(t, ok)
	assert.False(t, got[1].Has(model.FieldDomain))
}

func TestReadCSV_BadNumericCellIsWarning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,reviews_count\nCafe Roma,lots\n"), 0644))

	got, warnings, err := ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, warnings, 1)
	assert.Equal(t, model.FieldReviewsCount, warnings[0].Field)
	assert.Equal(t, 2, warnings[0].Row)
	assert.False(t, got[0].Has(model.FieldReviewsCount))
}

func TestReadCSV_ShortRowKeepsOtherRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragged.csv")
	content := "name,domain,reviews_count\n" +
		"Cafe Roma,caferoma.com,12\n" +
		"Bar Uno,baruno.it\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	got, warnings, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, got, 2)

	n, ok := got[0].ReviewsCount()
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	name, _ := got[1].Name()
	domain, _ := got[1].Domain()
	assert.Equal(t, "Bar Uno", name)
	assert.Equal(t, "baruno.it", domain)
	assert.False(t, got[1].Has(model.FieldReviewsCount))
}

func TestLoader_ShortRowIsNotCorrupt(t *testing.T) {
	layout := testLayout(t)
	require.NoError(t, layout.Ensure())
	path := layout.Path("bars in Milan", ".csv")
	require.NoError(t, os.WriteFile(path, []byte("name,domain,phone_number\nBar Uno,baruno.it,+39 02 1\nBar Due\n"), 0644))

	l := &Loader{Layout: layout, Logger: logging.Discard()}
	res := l.Load("bars in Milan")
	require.NoError(t, res.Err)
	assert.True(t, res.Found)
	assert.Empty(t, res.Preserved)
	require.Len(t, res.Businesses, 2)
	assert.False(t, res.Businesses[1].Has(model.FieldDomain))
}

func TestReadCSV_SchemaErrors(t *testing.T) {
	tests := map[string]string{
		"unknown column":  "name,rating_stars\nx,5\n",
		"no known column": "Unnamed: 0\n1\n",
		"empty file":      "",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "f.csv")
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))
			_, _, err := ReadCSV(path)
			assert.ErrorIs(t, err, ErrSchema)
		})
	}
}

func TestLoader_MissingFileIsEmpty(t *testing.T) {
	l := &Loader{Layout: testLayout(t), Logger: logging.Discard()}

	res := l.Load("cafes in Rome")
	assert.False(t, res.Found)
	assert.NoError(t, res.Err)
	assert.Empty(t, res.Businesses)
}

func TestLoader_CorruptFileFallsBackAndIsPreserved(t *testing.T) {
	layout := testLayout(t)
	require.NoError(t, layout.Ensure())
	path := layout.Path("cafes in Rome", ".csv")
	require.NoError(t, os.WriteFile(path, []byte("name,\"broken\n"), 0644))

	l := &Loader{Layout: layout, Logger: logging.Discard()}
	res := l.Load("cafes in Rome")

	assert.True(t, res.Found)
	assert.Error(t, res.Err)
	assert.Empty(t, res.Businesses)
	require.NotEmpty(t, res.Preserved)

	kept, err := os.ReadFile(res.Preserved)
	require.NoError(t, err)
	assert.Equal(t, "name,\"broken\n", string(kept))
}

func TestLoader_LoadsSavedDataset(t *testing.T) {
	layout := testLayout(t)
	want := sample(t)
	_, err := CSVSink{Layout: layout}.Save(context.Background(), "cafes in Rome", want)
	require.NoError(t, err)

	res := (&Loader{Layout: layout, Logger: logging.Discard()}).Load("cafes in Rome")
	require.NoError(t, res.Err)
	assert.Equal(t, want, res.Businesses)
}

func TestWriteCSV_OverwritesWithoutLeftovers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, WriteCSV(path, sample(t)))
	require.NoError(t, WriteCSV(path, sample(t)[:1]))

	got, _, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestXLSX_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.xlsx")
	want := sample(t)

	require.NoError(t, WriteXLSX(path, want))
	got, warnings, err := ReadXLSX(path)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, got, len(want))

	for i := range want {
		assert.Equal(t, want[i].Values(), got[i].Values())
	}
}

func TestSQLiteStore_SnapshotReplaced(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "mapharvest.db"))
	require.NoError(t, err)
	defer store.Close()

	data := sample(t)
	_, err = store.Save(ctx, "cafes in Rome", data)
	require.NoError(t, err)
	_, err = store.Save(ctx, "cafes in Rome", data[:1])
	require.NoError(t, err)
	_, err = store.Save(ctx, "bars in Rome", data)
	require.NoError(t, err)

	got, err := store.Load(ctx, "cafes in Rome")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, data[0].Values(), got[0].Values())

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bars in Rome", "cafes in Rome"}, keys)
}

type failingSink struct{ name string }

func (f failingSink) Name() string { return f.name }
func (f failingSink) Save(context.Context, string, []model.Business) (string, error) {
	return "", errors.New("disk full")
}
func (f failingSink) Close() error { return nil }

func TestSaver_MirrorFailureIsNotFatal(t *testing.T) {
	layout := testLayout(t)
	s := &Saver{
		Primary: CSVSink{Layout: layout},
		Mirrors: []Sink{failingSink{"broken"}, XLSXSink{Layout: layout}},
		Logger:  logging.Discard(),
	}

	written, err := s.Save(context.Background(), "cafes", sample(t))
	require.NoError(t, err)
	assert.Equal(t, []string{layout.Path("cafes", ".csv"), layout.Path("cafes", ".xlsx")}, written)
}

func TestSaver_PrimaryFailureIsFatal(t *testing.T) {
	s := &Saver{Primary: failingSink{"csv"}, Logger: logging.Discard()}

	_, err := s.Save(context.Background(), "cafes", sample(t))
	assert.ErrorContains(t, err, "disk full")
}

func TestReadDataset_AllFormats(t *testing.T) {
	dir := t.TempDir()
	bs := sample(t)

	csvPath := filepath.Join(dir, "a.csv")
	require.NoError(t, WriteCSV(csvPath, bs))
	xlsxPath := filepath.Join(dir, "a.xlsx")
	require.NoError(t, WriteXLSX(xlsxPath, bs))

	dbPath := filepath.Join(dir, "a.db")
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	_, err = store.Save(context.Background(), "one", bs[:1])
	require.NoError(t, err)
	_, err = store.Save(context.Background(), "two", bs[1:])
	require.NoError(t, err)
	require.NoError(t, store.Close())

	for _, p := range []string{csvPath, xlsxPath, dbPath} {
		got, err := ReadDataset(context.Background(), p)
		require.NoError(t, err, p)
		require.Len(t, got, 2, p)
		assert.Equal(t, bs[0].Values(), got[0].Values(), p)
		assert.Equal(t, bs[1].Values(), got[1].Values(), p)
	}

	_, err = ReadDataset(context.Background(), filepath.Join(dir, "a.json"))
	assert.ErrorContains(t, err, "unsupported dataset")
	_, err = ReadDataset(context.Background(), filepath.Join(dir, "missing.db"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.NoFileExists(t, filepath.Join(dir, "missing.db"))
}
