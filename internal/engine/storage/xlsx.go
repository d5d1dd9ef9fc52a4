package storage

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/rendis/mapharvest/internal/model"
)

const sheetName = "Sheet1"

// WriteXLSX mirrors the dataset into a spreadsheet. Numeric attributes are
// stored as numbers so they sort and sum in spreadsheet tools.
func WriteXLSX(path string, businesses []model.Business) error {
	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return fmt.Errorf("creating stream writer: %w", err)
	}

	header := make([]any, len(model.Fields))
	for i, c := range model.Header() {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, b := range businesses {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, xlsxRow(b)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flushing sheet: %w", err)
	}

	return writeAtomic(path, func(w io.Writer) error {
		if _, err := f.WriteTo(w); err != nil {
			return fmt.Errorf("writing xlsx: %w", err)
		}
		return nil
	})
}

// ReadXLSX reads the first sheet of a spreadsheet dataset.
func ReadXLSX(path string) ([]model.Business, []CellWarning, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, nil, fmt.Errorf("reading sheet: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%w: empty sheet", ErrSchema)
	}
	return decodeRows(rows[0], rows[1:])
}

func xlsxRow(b model.Business) []any {
	row := make([]any, len(model.Fields))
	for i, f := range model.Fields {
		v, ok := b.Value(f)
		if !ok {
			row[i] = nil
			continue
		}
		switch f.Kind() {
		case model.KindInteger:
			n, _ := strconv.Atoi(v)
			row[i] = n
		case model.KindDecimal:
			x, _ := strconv.ParseFloat(v, 64)
			row[i] = x
		default:
			row[i] = v
		}
	}
	return row
}
