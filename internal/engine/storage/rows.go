package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rendis/mapharvest/internal/model"
)

// ErrSchema means a dataset does not carry the expected columns.
var ErrSchema = errors.New("unexpected dataset schema")

// missingTokens are cells that mean "no value", including the markers left
// by dataframe tooling.
var missingTokens = map[string]bool{
	"":     true,
	"NaN":  true,
	"nan":  true,
	"<NA>": true,
}

// CellWarning describes a cell that could not be used. The rest of the row
// is still loaded.
type CellWarning struct {
	Row   int
	Field model.Field
	Err   error
}

func (w CellWarning) Error() string {
	return fmt.Sprintf("row %d, %s: %v", w.Row, w.Field, w.Err)
}

// isIndexColumn matches index artifacts written by dataframe tools.
func isIndexColumn(name string) bool {
	name = strings.TrimSpace(name)
	return name == "" || name == "index" || strings.HasPrefix(name, "Unnamed:")
}

// decodeRows turns a header plus data rows into businesses. Unknown columns
// are a schema error; index columns are ignored. Short rows are padded.
func decodeRows(header []string, rows [][]string) ([]model.Business, []CellWarning, error) {
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	cols := make([]model.Field, len(header))
	known := 0
	for i, h := range header {
		if isIndexColumn(h) {
			continue
		}
		f, ok := model.ParseField(h)
		if !ok {
			return nil, nil, fmt.Errorf("%w: unknown column %q", ErrSchema, h)
		}
		cols[i] = f
		known++
	}
	if known == 0 {
		return nil, nil, fmt.Errorf("%w: no known columns", ErrSchema)
	}

	var (
		out      = make([]model.Business, 0, len(rows))
		warnings []CellWarning
	)
	for r, row := range rows {
		bb := model.NewBuilder()
		for i, f := range cols {
			if f == "" || i >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[i])
			if missingTokens[cell] {
				continue
			}
			bb.Set(f, cell)
		}
		b, report := bb.Build()
		for _, f := range report.Failed() {
			// r+2: 1-based, after the header line
			warnings = append(warnings, CellWarning{Row: r + 2, Field: f, Err: report[f].Reason})
		}
		out = append(out, b)
	}
	return out, warnings, nil
}

func encodeRows(businesses []model.Business) [][]string {
	rows := make([][]string, 0, len(businesses)+1)
	rows = append(rows, model.Header())
	for _, b := range businesses {
		rows = append(rows, b.Values())
	}
	return rows
}
