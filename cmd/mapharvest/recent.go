package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rendis/mapharvest/internal/tui"
	"github.com/rendis/mapharvest/internal/tui/views"
)

func runRecent(args []string) error {
	fs := flag.NewFlagSet("recent", flag.ExitOnError)
	useTUI := fs.Bool("tui", false, "Open the interactive list")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mapharvest recent [-tui]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	store := tui.DefaultRecentStore()
	if *useTUI {
		return tui.RunRecent(store)
	}

	entries, err := store.Load()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No datasets collected yet. Run 'mapharvest collect -s \"<term>\"' first.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TERM\tRECORDS\tSAVED\tPATH")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", e.Term, e.Records, views.TimeAgo(e.SavedAt), e.Path)
	}
	return w.Flush()
}

func runExplore(args []string) error {
	fs := flag.NewFlagSet("explore", flag.ExitOnError)
	file := fs.String("f", "", "Dataset to browse (.csv, .xlsx or .db)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mapharvest explore -f FILE\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" && fs.NArg() > 0 {
		*file = fs.Arg(0)
	}
	if *file == "" {
		fs.Usage()
		return fmt.Errorf("-f is required")
	}
	if _, err := os.Stat(*file); err != nil {
		return err
	}
	return tui.RunExplorer(*file)
}
