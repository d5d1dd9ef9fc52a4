package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rendis/mapharvest/internal/engine/storage"
	"github.com/rendis/mapharvest/internal/model"
)

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	in := fs.String("in", "", "Dataset to read (.csv, .xlsx or .db)")
	format := fs.String("format", "xlsx", "Output format: xlsx, csv or sqlite")
	output := fs.String("output", "", "Output file (default: input name with the new extension)")
	key := fs.String("key", "", "Search key stored in the sqlite output (default: input file name)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mapharvest export -in FILE [flags]\n\nFlags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  mapharvest export -in \"GMaps Data/2026-10-18/cafes_in_Rome.csv\" -format sqlite -output cafes.db\n")
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		fs.Usage()
		return fmt.Errorf("-in is required")
	}

	ext, err := formatExt(*format)
	if err != nil {
		return err
	}

	ctx := context.Background()
	businesses, err := storage.ReadDataset(ctx, *in)
	if err != nil {
		return err
	}

	stem := strings.TrimSuffix(*in, filepath.Ext(*in))
	out := *output
	if out == "" {
		out = stem + ext
	}
	if out == *in {
		return fmt.Errorf("output %s would overwrite the input", out)
	}

	switch ext {
	case ".csv":
		err = storage.WriteCSV(out, businesses)
	case ".xlsx":
		err = storage.WriteXLSX(out, businesses)
	case ".db":
		k := *key
		if k == "" {
			k = filepath.Base(stem)
		}
		err = exportSQLite(ctx, out, k, businesses)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Exported %d records to %s\n", len(businesses), out)
	return nil
}

func formatExt(format string) (string, error) {
	switch strings.ToLower(format) {
	case "csv":
		return ".csv", nil
	case "xlsx", "excel":
		return ".xlsx", nil
	case "sqlite", "db":
		return ".db", nil
	}
	return "", fmt.Errorf("unsupported format %q (use xlsx, csv or sqlite)", format)
}

func exportSQLite(ctx context.Context, path, key string, businesses []model.Business) error {
	store, err := storage.NewSQLiteStore(path)
	if err != nil {
		return err
	}
	defer store.Close()
	_, err = store.Save(ctx, key, businesses)
	return err
}
