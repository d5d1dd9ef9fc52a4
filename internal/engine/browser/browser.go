package browser

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/rendis/mapharvest/internal/engine/extract"
)

const (
	mapsSearchURL = "https://www.google.com/maps/search/"
	defaultUA     = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

var ErrNoResults = errors.New("search returned no results")

// Options tunes the browser session.
type Options struct {
	Headless      bool
	Locale        string
	UserAgent     string
	ActionTimeout time.Duration
	MinDelay      time.Duration
	MaxDelay      time.Duration
	// StallRounds is how many scrolls without new listings end enumeration.
	StallRounds int
}

func DefaultOptions() Options {
	return Options{
		Headless:      true,
		Locale:        "en-GB",
		UserAgent:     defaultUA,
		ActionTimeout: 30 * time.Second,
		MinDelay:      1500 * time.Millisecond,
		MaxDelay:      3 * time.Second,
		StallRounds:   2,
	}
}

// Browser drives a single Chrome tab through Google Maps.
type Browser struct {
	opts        Options
	ctx         context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
}

// New starts Chrome. The returned Browser must be closed.
func New(opts Options) (*Browser, error) {
	def := DefaultOptions()
	if opts.Locale == "" {
		opts.Locale = def.Locale
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = def.ActionTimeout
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}
	if opts.StallRounds <= 0 {
		opts.StallRounds = def.StallRounds
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("lang", opts.Locale),
		chromedp.UserAgent(opts.UserAgent),
		chromedp.WindowSize(1366, 900),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	ctx, cancelTab := chromedp.NewContext(allocCtx)

	// First Run launches the browser; it must not happen under a timeout
	// context or the tab dies with it.
	if err := chromedp.Run(ctx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("starting chrome: %w", err)
	}

	return &Browser{opts: opts, ctx: ctx, cancelAlloc: cancelAlloc, cancelTab: cancelTab}, nil
}

func (b *Browser) Close() error {
	b.cancelTab()
	b.cancelAlloc()
	return nil
}

// Search opens the results for term and waits for either the result feed or
// a single place pane.
func (b *Browser) Search(ctx context.Context, term string) error {
	tctx, cancel := b.action(ctx)
	defer cancel()

	var ready bool
	err := chromedp.Run(tctx,
		chromedp.Navigate(SearchURL(term, b.opts.Locale)),
		chromedp.Sleep(b.delay()),
		chromedp.Evaluate(consentScript, nil),
		chromedp.Poll(readyScript, &ready, chromedp.WithPollingTimeout(b.opts.ActionTimeout)),
	)
	if err != nil {
		return fmt.Errorf("searching %q: %w", term, err)
	}
	return nil
}

// Listings scrolls the result feed until limit place links are loaded or the
// feed stops growing. limit <= 0 means no cap. A search that landed directly
// on one place yields that place.
func (b *Browser) Listings(ctx context.Context, limit int) ([]string, error) {
	var (
		hrefs []string
		prev  = -1
		stall = 0
	)
	for {
		if err := ctx.Err(); err != nil {
			return capped(hrefs, limit), err
		}

		tctx, cancel := b.action(ctx)
		err := chromedp.Run(tctx,
			chromedp.Evaluate(scrollScript, nil),
			chromedp.Sleep(b.delay()),
			chromedp.Evaluate(listingsScript, &hrefs),
		)
		cancel()
		if err != nil {
			return capped(hrefs, limit), fmt.Errorf("enumerating listings: %w", err)
		}

		if limit > 0 && len(hrefs) >= limit {
			break
		}
		if len(hrefs) == prev {
			stall++
			if stall >= b.opts.StallRounds {
				break
			}
			continue
		}
		prev, stall = len(hrefs), 0
	}

	if len(hrefs) == 0 {
		var loc string
		tctx, cancel := b.action(ctx)
		defer cancel()
		if err := chromedp.Run(tctx, chromedp.Location(&loc)); err == nil && IsPlaceURL(loc) {
			return []string{loc}, nil
		}
		return nil, ErrNoResults
	}
	return capped(hrefs, limit), nil
}

// Open loads one place and returns its rendered detail pane.
func (b *Browser) Open(ctx context.Context, href string) (extract.Page, error) {
	tctx, cancel := b.action(ctx)
	defer cancel()

	var (
		ready bool
		page  extract.Page
	)
	err := chromedp.Run(tctx,
		chromedp.Navigate(href),
		chromedp.Evaluate(consentScript, nil),
		chromedp.Poll(placeReadyScript, &ready, chromedp.WithPollingTimeout(b.opts.ActionTimeout)),
		chromedp.Sleep(b.delay()),
		chromedp.OuterHTML("html", &page.HTML, chromedp.ByQuery),
		chromedp.Location(&page.URL),
	)
	if err != nil {
		return extract.Page{}, fmt.Errorf("opening %s: %w", href, err)
	}
	// The final URL may lose the place pin after client-side redirects.
	if !strings.Contains(page.URL, "!3d") && strings.Contains(href, "!3d") {
		page.URL = href
	}
	return page, nil
}

func (b *Browser) action(ctx context.Context) (context.Context, context.CancelFunc) {
	// Actions must run on the tab context; ctx only contributes cancellation.
	tctx, cancel := context.WithTimeout(b.ctx, b.opts.ActionTimeout)
	stop := context.AfterFunc(ctx, cancel)
	return tctx, func() {
		stop()
		cancel()
	}
}

func (b *Browser) delay() time.Duration {
	return Jitter(b.opts.MinDelay, b.opts.MaxDelay)
}

// Jitter returns a random duration in [lo, hi].
func Jitter(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}

// SearchURL builds the Maps search URL for term.
func SearchURL(term, locale string) string {
	u := mapsSearchURL + url.PathEscape(strings.TrimSpace(term))
	if locale != "" {
		u += "?hl=" + url.QueryEscape(locale)
	}
	return u
}

func IsPlaceURL(u string) bool {
	return strings.Contains(u, "/maps/place/")
}

func capped(hrefs []string, limit int) []string {
	if limit > 0 && len(hrefs) > limit {
		return hrefs[:limit]
	}
	return hrefs
}
