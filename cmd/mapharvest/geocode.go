package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rendis/mapharvest/internal/config"
	"github.com/rendis/mapharvest/internal/engine/geo"
	"github.com/rendis/mapharvest/internal/engine/storage"
	"github.com/rendis/mapharvest/internal/logging"
)

func runGeocode(args []string) error {
	def := config.Default()

	fs := flag.NewFlagSet("geocode", flag.ExitOnError)
	file := fs.String("f", "", "Dataset to fill (.csv or .xlsx)")
	userAgent := fs.String("user-agent", def.Geocode.UserAgent, "User-Agent sent to Nominatim")
	nominatim := fs.String("nominatim", def.Geocode.NominatimURL, "Nominatim search endpoint")
	maxKM := fs.Float64("max-distance", def.Geocode.MaxDistanceKM, "Reject recovered codes farther than this from the reference (km)")
	logLevel := fs.String("log-level", def.Logging.Level, "trace, debug, info, warn or error")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mapharvest geocode -f FILE [flags]\n\nFills latitude and longitude from plus codes and rewrites the csv and xlsx pair.\n\nFlags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		fs.Usage()
		return fmt.Errorf("-f is required")
	}
	ext := strings.ToLower(filepath.Ext(*file))
	if ext != ".csv" && ext != ".xlsx" {
		return fmt.Errorf("geocode works on .csv or .xlsx files, got %q", *file)
	}

	session, err := logging.Open(logging.Options{Level: *logLevel, Console: os.Stderr})
	if err != nil {
		return err
	}
	defer session.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src := geocodeSource(*file)
	if src != *file {
		session.Info().Str("csv", src).Msg("reading the csv next to the spreadsheet")
	}
	businesses, err := storage.ReadDataset(ctx, src)
	if err != nil {
		return err
	}

	cfg := config.Default()
	cfg.Geocode.UserAgent = *userAgent
	cfg.Geocode.NominatimURL = *nominatim
	cfg.Geocode.MaxDistanceKM = *maxKM

	filled, res := geo.Backfill(ctx, newGeocoder(cfg), businesses)
	for i, e := range res.Errors {
		session.Warn().Int("row", i+1).Str("business", filled[i].String()).Err(e).Msg("could not geocode")
	}

	// Both files of the pair stay in step.
	stem := strings.TrimSuffix(*file, filepath.Ext(*file))
	if err := storage.WriteCSV(stem+".csv", filled); err != nil {
		return err
	}
	if err := storage.WriteXLSX(stem+".xlsx", filled); err != nil {
		return err
	}

	fmt.Printf("Geocoded %d of %d records (%d already located, %d failed)\n",
		res.Filled, len(filled), res.Skipped, len(res.Errors))
	if ctx.Err() != nil {
		fmt.Println("Interrupted, the remaining records were written unchanged")
	}
	return nil
}

// geocodeSource picks the file to read for path. The csv is the primary
// copy, so a spreadsheet with a csv beside it is read through the csv.
func geocodeSource(path string) string {
	if strings.ToLower(filepath.Ext(path)) != ".xlsx" {
		return path
	}
	csvPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".csv"
	if _, err := os.Stat(csvPath); err == nil {
		return csvPath
	}
	return path
}
