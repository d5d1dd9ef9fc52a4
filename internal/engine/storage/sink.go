package storage

import (
	"context"
	"fmt"

	"github.com/phuslu/log"

	"github.com/rendis/mapharvest/internal/model"
)

// Sink persists the full dataset of one search term, replacing what it held
// before. Save returns where the data went.
type Sink interface {
	Name() string
	Save(ctx context.Context, key string, businesses []model.Business) (string, error)
	Close() error
}

// CSVSink writes <dir>/<term>.csv, the file the loader reads back.
type CSVSink struct {
	Layout Layout
}

func (s CSVSink) Name() string { return "csv" }

func (s CSVSink) Save(_ context.Context, key string, businesses []model.Business) (string, error) {
	path := s.Layout.Path(key, ".csv")
	if err := WriteCSV(path, businesses); err != nil {
		return "", err
	}
	return path, nil
}

func (s CSVSink) Close() error { return nil }

// XLSXSink writes <dir>/<term>.xlsx.
type XLSXSink struct {
	Layout Layout
}

func (s XLSXSink) Name() string { return "xlsx" }

func (s XLSXSink) Save(_ context.Context, key string, businesses []model.Business) (string, error) {
	path := s.Layout.Path(key, ".xlsx")
	if err := WriteXLSX(path, businesses); err != nil {
		return "", err
	}
	return path, nil
}

func (s XLSXSink) Close() error { return nil }

// Saver writes the primary sink first and then every mirror. Only a primary
// failure is returned; mirror failures are logged because the primary file
// already holds the data.
type Saver struct {
	Primary Sink
	Mirrors []Sink
	Logger  *log.Logger
}

// NewSaver uses the CSV file as primary and the spreadsheet as first mirror.
func NewSaver(layout Layout, logger *log.Logger, extra ...Sink) *Saver {
	return &Saver{
		Primary: CSVSink{Layout: layout},
		Mirrors: append([]Sink{XLSXSink{Layout: layout}}, extra...),
		Logger:  logger,
	}
}

// Save returns the locations written, primary first.
func (s *Saver) Save(ctx context.Context, key string, businesses []model.Business) ([]string, error) {
	loc, err := s.Primary.Save(ctx, key, businesses)
	if err != nil {
		return nil, fmt.Errorf("saving %s: %w", s.Primary.Name(), err)
	}
	written := []string{loc}

	for _, m := range s.Mirrors {
		loc, err := m.Save(ctx, key, businesses)
		if err != nil {
			s.Logger.Warn().Err(err).Str("sink", m.Name()).Str("term", key).Msg("mirror save failed")
			continue
		}
		written = append(written, loc)
	}
	return written, nil
}

// Close closes every sink and returns the first error.
func (s *Saver) Close() error {
	var first error
	for _, sink := range append([]Sink{s.Primary}, s.Mirrors...) {
		if err := sink.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
