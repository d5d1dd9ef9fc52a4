package scraper

import (
	"fmt"
	"io"
	"time"

	"github.com/phuslu/log"

	"github.com/rendis/mapharvest/internal/model"
)

type EventKind int

const (
	EventTermStarted EventKind = iota
	EventLoaded
	EventListings
	EventListing
	EventSkipped
	EventSaved
	EventTermDone
)

// Event is one step of a run. Which fields are set depends on Kind.
type Event struct {
	Kind     EventKind
	Term     string
	Index    int
	Count    int
	Business model.Business
	Report   model.Report
	Added    bool
	Err      error
	Result   *TermResult
}

// report prints a progress line to out every two seconds and a PROGRESS log
// entry every ten, until done is closed. A nil out only logs.
func report(stats *Stats, logger *log.Logger, out io.Writer, start time.Time, done <-chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	logTicker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	defer logTicker.Stop()

	for {
		select {
		case <-ticker.C:
			if out != nil {
				fmt.Fprintf(out, "\r%s", progressLine(stats, start))
			}
		case <-logTicker.C:
			logger.Info().
				Int64("terms_done", stats.TermsDone.Load()).
				Int("terms_total", stats.TermsTotal).
				Int64("scraped", stats.Scraped.Load()).
				Int64("added", stats.Added.Load()).
				Int64("duplicates", stats.Duplicates.Load()).
				Int64("skipped", stats.Skipped.Load()).
				Dur("elapsed", time.Since(start).Truncate(time.Second)).
				Msg("progress")
		case <-done:
			return
		}
	}
}

func progressLine(stats *Stats, start time.Time) string {
	elapsed := time.Since(start).Truncate(time.Second)
	line := fmt.Sprintf("[%d/%d terms] %d scraped | %d new | %d duplicates",
		stats.TermsDone.Load(), stats.TermsTotal,
		stats.Scraped.Load(), stats.Added.Load(), stats.Duplicates.Load())
	if sk := stats.Skipped.Load(); sk > 0 {
		line += fmt.Sprintf(" | %d skipped", sk)
	}
	return line + " | " + elapsed.String()
}

// Summary renders the per-term update summary printed after a run.
func Summary(w io.Writer, results []TermResult) {
	for _, r := range results {
		fmt.Fprintf(w, "\n--- Update summary for %q ---\n", r.Term)
		if r.LoadErr != nil {
			fmt.Fprintf(w, "Previous file unreadable: %v\n", r.LoadErr)
			if r.Preserved != "" {
				fmt.Fprintf(w, "Copy kept at: %s\n", r.Preserved)
			}
		}
		fmt.Fprintf(w, "Records previously saved: %d\n", r.Loaded)
		fmt.Fprintf(w, "New unique records added: %d\n", r.Added)
		if r.Duplicates > 0 {
			fmt.Fprintf(w, "Duplicates ignored: %d\n", r.Duplicates)
		}
		if r.Skipped > 0 {
			fmt.Fprintf(w, "Listings skipped: %d\n", r.Skipped)
		}
		fmt.Fprintf(w, "Total records in file: %d\n", r.Total)
		if r.Err != nil && len(r.Files) == 0 {
			fmt.Fprintf(w, "Not saved: %v\n", r.Err)
			continue
		}
		for _, f := range r.Files {
			fmt.Fprintf(w, "File updated: %s\n", f)
		}
	}
}
