package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rendis/mapharvest/internal/model"
)

// ReadDataset loads any file this tool writes: .csv, .xlsx, or a SQLite
// mirror (.db), whose search terms are concatenated in key order.
func ReadDataset(ctx context.Context, path string) ([]model.Business, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		bs, _, err := ReadCSV(path)
		return bs, err
	case ".xlsx":
		bs, _, err := ReadXLSX(path)
		return bs, err
	case ".db", ".sqlite":
		// NewSQLiteStore would create a missing file.
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
		store, err := NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		defer store.Close()

		keys, err := store.Keys(ctx)
		if err != nil {
			return nil, err
		}
		var all []model.Business
		for _, k := range keys {
			bs, err := store.Load(ctx, k)
			if err != nil {
				return nil, fmt.Errorf("loading %q: %w", k, err)
			}
			all = append(all, bs...)
		}
		return all, nil
	}
	return nil, fmt.Errorf("unsupported dataset %q (want .csv, .xlsx or .db)", path)
}
