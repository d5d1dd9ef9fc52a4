package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rendis/mapharvest/internal/tui"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return tui.RunRecent(tui.DefaultRecentStore())
	}

	switch args[0] {
	case "collect":
		return runCollect(args[1:])
	case "export":
		return runExport(args[1:])
	case "geocode":
		return runGeocode(args[1:])
	case "recent":
		return runRecent(args[1:])
	case "explore":
		return runExplore(args[1:])
	case "version":
		fmt.Println("mapharvest " + version)
		return nil
	case "help", "--help", "-h":
		printUsage()
		return nil
	}

	// Bare flags behave like collect: mapharvest -s "cafes in Rome" -t 20
	if strings.HasPrefix(args[0], "-") {
		return runCollect(args)
	}
	printUsage()
	return fmt.Errorf("unknown command %q", args[0])
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `mapharvest - incremental Google Maps business collector

Usage:
  mapharvest                    Browse recent datasets
  mapharvest collect [flags]    Scrape search terms and merge into today's dataset
  mapharvest export [flags]     Convert a dataset to csv, xlsx or sqlite
  mapharvest geocode [flags]    Fill coordinates from plus codes
  mapharvest recent [-tui]      List recent datasets
  mapharvest explore -f FILE    Browse one dataset
  mapharvest version            Show version

Run 'mapharvest <command> -h' for flags.
`)
}
