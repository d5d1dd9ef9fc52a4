package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/phuslu/log"

	"github.com/rendis/mapharvest/internal/model"
)

// LoadResult is what the loader found for one search term.
type LoadResult struct {
	Path       string
	Businesses []model.Business
	Found      bool
	// Err is set when a file existed but could not be used. The run carries
	// on with an empty collection.
	Err error
	// Preserved is where an unreadable file was copied before it gets
	// overwritten.
	Preserved string
	Warnings  []CellWarning
}

// Loader reads the dataset previously saved for a search term.
type Loader struct {
	Layout Layout
	Logger *log.Logger
}

// Load never fails: a missing file is a first run and an unreadable one is
// reported and replaced by an empty result.
func (l *Loader) Load(term string) LoadResult {
	res := LoadResult{Path: l.Layout.Path(term, ".csv")}

	businesses, warnings, err := ReadCSV(res.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		l.Logger.Debug().Str("path", res.Path).Msg("no previous dataset")
		return res
	case err != nil:
		res.Found = true
		res.Err = err
		if dst, cerr := preserve(res.Path); cerr == nil {
			res.Preserved = dst
		} else {
			l.Logger.Error().Err(cerr).Str("path", res.Path).Msg("could not preserve unreadable dataset")
		}
		l.Logger.Warn().Err(err).Str("path", res.Path).Str("preserved", res.Preserved).
			Msg("could not load existing data, starting fresh")
		return res
	}

	for _, w := range warnings {
		l.Logger.Warn().Str("path", res.Path).Int("row", w.Row).Str("field", string(w.Field)).Err(w.Err).
			Msg("ignoring unusable cell")
	}

	res.Found = true
	res.Businesses = businesses
	res.Warnings = warnings
	l.Logger.Info().Str("path", res.Path).Int("records", len(businesses)).Msg("loaded existing records")
	return res
}

func preserve(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	dst := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return "", err
	}
	return dst, nil
}
