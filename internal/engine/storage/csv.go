package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rendis/mapharvest/internal/model"
)

// ReadCSV parses a dataset file. Unusable numeric cells are returned as
// warnings; the attribute is left absent.
func ReadCSV(path string) ([]model.Business, []CellWarning, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	// Ragged rows are padded with missing cells by decodeRows.
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%w: empty file", ErrSchema)
		}
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading rows: %w", err)
	}
	return decodeRows(header, rows)
}

// WriteCSV replaces path with the businesses, one row each, header first.
func WriteCSV(path string, businesses []model.Business) error {
	return writeAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.WriteAll(encodeRows(businesses)); err != nil {
			return fmt.Errorf("writing csv: %w", err)
		}
		return nil
	})
}
