package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/phuslu/log"

	"github.com/rendis/mapharvest/internal/engine/collection"
	"github.com/rendis/mapharvest/internal/engine/extract"
	"github.com/rendis/mapharvest/internal/engine/geo"
	"github.com/rendis/mapharvest/internal/engine/storage"
	"github.com/rendis/mapharvest/internal/model"
)

// Driver is the browser side of a run.
type Driver interface {
	Search(ctx context.Context, term string) error
	Listings(ctx context.Context, limit int) ([]string, error)
	Open(ctx context.Context, href string) (extract.Page, error)
}

type Loader interface {
	Load(term string) storage.LoadResult
}

type Saver interface {
	Save(ctx context.Context, key string, businesses []model.Business) ([]string, error)
}

type Stats struct {
	TermsTotal int
	TermsDone  atomic.Int64
	Loaded     atomic.Int64
	Listings   atomic.Int64
	Scraped    atomic.Int64
	Added      atomic.Int64
	Duplicates atomic.Int64
	Skipped    atomic.Int64
}

// TermResult summarizes one search term.
type TermResult struct {
	Term       string
	Loaded     int
	LoadErr    error
	Preserved  string
	Listings   int
	Scraped    int
	Added      int
	Duplicates int
	Skipped    int
	Total      int
	Files      []string
	Err        error
}

// RunOptions provides optional settings and callbacks for the pipeline.
type RunOptions struct {
	// Total caps the listings attempted per term; <= 0 means all.
	Total int
	// Policy builds the dedup key. Nil uses collection.DefaultPolicy.
	Policy collection.KeyPolicy
	// Geocoder, if set, fills coordinates from the plus code for listings
	// whose URL carries no place pin.
	Geocoder geo.Geocoder
	// OnEvent is called for every step; the TUI hangs off it.
	OnEvent func(Event)
	// SuppressStderr disables the built-in stderr progress reporter.
	SuppressStderr bool
	// Stats allows passing an external Stats object for live progress tracking.
	// If nil, Run() creates its own.
	Stats *Stats
}

// Run processes the terms one after another: load what was saved before,
// seed the collection, scrape, insert, save. A listing that fails is skipped;
// only a failure of the primary save aborts the run. When ctx is cancelled
// the current term is still saved before Run returns.
func Run(ctx context.Context, d Driver, terms []string, loader Loader, saver Saver, logger *log.Logger, opts *RunOptions) ([]TermResult, error) {
	if opts == nil {
		opts = &RunOptions{}
	}
	stats := opts.Stats
	if stats == nil {
		stats = &Stats{}
	}
	stats.TermsTotal = len(terms)

	startTime := time.Now()
	done := make(chan struct{})
	finished := make(chan struct{})
	var out io.Writer = os.Stderr
	if opts.SuppressStderr {
		out = nil
	}
	go func() {
		defer close(finished)
		report(stats, logger, out, startTime, done)
	}()
	defer func() {
		close(done)
		<-finished
		if out != nil {
			fmt.Fprintf(out, "\r%s\n", progressLine(stats, startTime))
		}
	}()

	emit := func(e Event) {
		if opts.OnEvent != nil {
			opts.OnEvent(e)
		}
	}

	var results []TermResult
	for i, term := range terms {
		if ctx.Err() != nil {
			break
		}
		emit(Event{Kind: EventTermStarted, Term: term, Index: i, Count: len(terms)})

		res, err := runTerm(ctx, d, term, loader, saver, logger, opts, stats, emit)
		results = append(results, res)
		stats.TermsDone.Add(1)
		emit(Event{Kind: EventTermDone, Term: term, Index: i, Count: len(terms), Result: &res})

		if err != nil {
			return results, err
		}
	}
	return results, ctx.Err()
}

func runTerm(ctx context.Context, d Driver, term string, loader Loader, saver Saver, logger *log.Logger, opts *RunOptions, stats *Stats, emit func(Event)) (TermResult, error) {
	res := TermResult{Term: term}
	logger.Info().Str("term", term).Msg("processing search term")

	loaded := loader.Load(term)
	res.LoadErr = loaded.Err
	res.Preserved = loaded.Preserved

	col := collection.New(opts.Policy)
	if err := col.Seed(loaded.Businesses); err != nil {
		return res, fmt.Errorf("seeding %q: %w", term, err)
	}
	res.Loaded = col.Seeded()
	stats.Loaded.Add(int64(res.Loaded))
	emit(Event{Kind: EventLoaded, Term: term, Count: res.Loaded, Err: loaded.Err})

	if err := d.Search(ctx, term); err != nil {
		res.Err = err
		res.Total = col.Len()
		logger.Warn().Err(err).Str("term", term).Msg("search failed, moving to next term")
		return res, nil
	}

	hrefs, err := d.Listings(ctx, opts.Total)
	if err != nil && len(hrefs) == 0 {
		res.Err = err
		res.Total = col.Len()
		logger.Warn().Err(err).Str("term", term).Msg("no listings found, moving to next term")
		return res, nil
	}
	if err != nil {
		logger.Warn().Err(err).Str("term", term).Int("listings", len(hrefs)).Msg("listing enumeration stopped early")
	}
	res.Listings = len(hrefs)
	stats.Listings.Add(int64(len(hrefs)))
	emit(Event{Kind: EventListings, Term: term, Count: len(hrefs)})

	for i, href := range hrefs {
		if ctx.Err() != nil {
			logger.Warn().Str("term", term).Int("remaining", len(hrefs)-i).Msg("interrupted, saving collected records")
			break
		}

		b, report, err := scrape(ctx, d, href, term)
		if err != nil {
			res.Skipped++
			stats.Skipped.Add(1)
			logger.Warn().Err(err).Str("term", term).Str("href", href).Msg("skipping listing")
			emit(Event{Kind: EventSkipped, Term: term, Index: i, Count: len(hrefs), Err: err})
			continue
		}
		if failed := report.Failed(); len(failed) > 0 {
			for _, f := range failed {
				logger.Debug().Str("term", term).Str("field", string(f)).Err(report[f].Reason).Msg("field not extracted")
			}
		}

		if opts.Geocoder != nil {
			b = locate(ctx, opts.Geocoder, b, logger)
		}

		res.Scraped++
		stats.Scraped.Add(1)
		added := col.Insert(b)
		if added {
			res.Added++
			stats.Added.Add(1)
		} else {
			res.Duplicates++
			stats.Duplicates.Add(1)
		}
		emit(Event{Kind: EventListing, Term: term, Index: i, Count: len(hrefs), Business: b, Report: report, Added: added})
	}

	res.Total = col.Len()
	files, err := saver.Save(context.WithoutCancel(ctx), term, col.Businesses())
	if err != nil {
		res.Err = err
		return res, fmt.Errorf("saving %q: %w", term, err)
	}
	res.Files = files
	emit(Event{Kind: EventSaved, Term: term, Count: res.Total})

	logger.Info().Str("term", term).
		Int("loaded", res.Loaded).
		Int("added", res.Added).
		Int("duplicates", res.Duplicates).
		Int("skipped", res.Skipped).
		Int("total", res.Total).
		Msg("term saved")
	return res, nil
}

func scrape(ctx context.Context, d Driver, href, term string) (model.Business, model.Report, error) {
	page, err := d.Open(ctx, href)
	if err != nil {
		return model.Business{}, nil, err
	}
	return extract.Listing(page, term)
}

func locate(ctx context.Context, g geo.Geocoder, b model.Business, logger *log.Logger) model.Business {
	if (b.Has(model.FieldLatitude) && b.Has(model.FieldLongitude)) || !b.Has(model.FieldPlusCode) {
		return b
	}
	out, res := geo.Backfill(ctx, g, []model.Business{b})
	for _, err := range res.Errors {
		if !errors.Is(err, context.Canceled) {
			logger.Debug().Err(err).Str("name", b.String()).Msg("plus code not geocoded")
		}
	}
	return out[0]
}
