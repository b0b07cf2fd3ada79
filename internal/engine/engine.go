// Package engine drives watched searches through the listing pipeline:
// gather, validate, dedup, geofilter, quality check, notify.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/url"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"dealwatch/internal/cache"
	"dealwatch/internal/extractor"
	"dealwatch/internal/model"
	"dealwatch/internal/quality"
	"dealwatch/internal/runlog"
	"dealwatch/internal/storage"
)

// Marketplace sort orders, issued in this order for every search.
const (
	SortRecency   = "creation_time_descend"
	SortRelevance = "best_match"
)

const (
	defaultInterval    = 5 * time.Minute
	defaultRunDelay    = 5 * time.Second
	minListingDelay    = 1 * time.Second
	maxListingDelay    = 4 * time.Second
	cacheTrimThreshold = 2000
	cacheTrimTarget    = 1000
)

// Browser fetches rendered marketplace pages. Implementations own a single
// browser session; the engine serializes all calls against it.
type Browser interface {
	SearchPage(ctx context.Context, url string) (string, error)
	ListingPage(ctx context.Context, url string) (string, error)
}

// DistanceResolver resolves a destination to a distance from the origin.
type DistanceResolver interface {
	Distance(ctx context.Context, origin, destination string) (float64, string, error)
}

// QualityChecker produces an accept/reject verdict for a listing.
type QualityChecker interface {
	Check(ctx context.Context, in quality.Input) (quality.Verdict, error)
}

// Notifier delivers kept products and batched run summaries.
type Notifier interface {
	SendProduct(ctx context.Context, channelID int64, p model.Product, distance float64, duration string, trace string) error
	SendRunSummary(ctx context.Context, channelID int64, searchID string, entries []model.ListingLog) error
}

// Engine owns the browser session and runs the full cycle over all watched
// searches, on a timer and on demand.
type Engine struct {
	browser  Browser
	cache    *cache.Cache
	distance DistanceResolver
	quality  QualityChecker
	store    storage.Storage
	notifier Notifier
	log      *slog.Logger
	origin   string

	interval     time.Duration
	runDelay     time.Duration
	listingDelay func()

	running atomic.Bool
}

// New creates an Engine with production timing defaults.
func New(browser Browser, c *cache.Cache, distance DistanceResolver, q QualityChecker,
	store storage.Storage, notifier Notifier, origin string, log *slog.Logger) *Engine {
	return &Engine{
		browser:  browser,
		cache:    c,
		distance: distance,
		quality:  q,
		store:    store,
		notifier: notifier,
		log:      log,
		origin:   origin,
		interval: defaultInterval,
		runDelay: defaultRunDelay,
		listingDelay: func() {
			// Randomized pause between listing detail fetches; a deliberate
			// rate limit, not a tunable.
			d := minListingDelay + time.Duration(rand.Int63n(int64(maxListingDelay-minListingDelay)))
			time.Sleep(d)
		},
	}
}

// SetTiming overrides the cycle interval and inter-run delay (useful for testing).
func (e *Engine) SetTiming(interval, runDelay time.Duration, listingDelay func()) {
	e.interval = interval
	e.runDelay = runDelay
	if listingDelay != nil {
		e.listingDelay = listingDelay
	}
}

// Run starts the polling loop, blocking until ctx is cancelled. A cycle fires
// immediately, then on every tick.
func (e *Engine) Run(ctx context.Context) {
	e.RunCycle(ctx)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.RunCycle(ctx)
		}
	}
}

// RunCycle performs one full pass over every watched search in both sort
// orders. It returns false without doing anything when a cycle is already in
// flight, so a manual trigger cannot overlap the timer.
func (e *Engine) RunCycle(ctx context.Context) bool {
	if !e.running.CompareAndSwap(false, true) {
		e.log.Warn("cycle already in progress, skipping trigger")
		return false
	}
	defer e.running.Store(false)

	searches, err := e.store.ListSearches(ctx)
	if err != nil {
		e.log.Error("list searches", "error", err)
		return true
	}
	e.log.Info("checking sites", "searches", len(searches))

	for _, search := range searches {
		for _, sort := range []string{SortRecency, SortRelevance} {
			if ctx.Err() != nil {
				return true
			}
			if _, err := e.PerformSearch(ctx, search, sort); err != nil {
				// Run-level failures produce an empty run; the next tick still fires.
				e.log.Error("search run failed", "search_id", search.ID, "sort", sort, "error", err)
			}
			e.sleep(ctx, e.runDelay)
		}
	}

	if e.cache.Len() >= cacheTrimThreshold {
		if err := e.cache.Trim(e.cache.Len() - cacheTrimTarget); err != nil {
			e.log.Error("trim cache", "error", err)
		}
	}
	return true
}

// Running reports whether a cycle is currently in flight.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// PerformSearch executes one (search, sort order) run and returns the kept
// products. Every listing ends with exactly one terminal outcome, recorded by
// the run's collector and flushed once at the end.
func (e *Engine) PerformSearch(ctx context.Context, search model.SearchConfig, sort string) ([]model.Product, error) {
	// A termless search can only come from a hand-edited row; refuse it
	// instead of handing gatherListings nothing to merge.
	if len(search.Terms) == 0 {
		return nil, fmt.Errorf("search %q has no terms", search.ID)
	}

	collector := runlog.NewCollector(search.ID)

	feedChannel, err := e.store.GetFeedChannel(ctx)
	if err != nil {
		e.log.Error("get feed channel", "error", err)
		feedChannel = 0
	}

	anchors, err := e.gatherListings(ctx, search, sort)
	if err != nil {
		return nil, fmt.Errorf("gather listings: %w", err)
	}
	e.log.Info("gathered links", "search_id", search.ID, "sort", sort, "count", anchors.Length())

	var products []model.Product
	anchors.EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if ctx.Err() != nil {
			return false
		}
		if p, ok := e.processListing(ctx, search, sel, collector); ok {
			products = append(products, p)
		}
		return true
	})

	collector.Flush(ctx, e.log, e.notifier, feedChannel)
	return products, nil
}

// gatherListings fetches the search results page for every term and collects
// all anchor fragments.
func (e *Engine) gatherListings(ctx context.Context, search model.SearchConfig, sort string) (*goquery.Selection, error) {
	var all *goquery.Selection
	for _, term := range search.Terms {
		pageHTML, err := e.browser.SearchPage(ctx, searchURL(search, term, sort))
		if err != nil {
			return nil, fmt.Errorf("fetch search page for %q: %w", term, err)
		}
		anchors, err := extractor.Anchors(pageHTML)
		if err != nil {
			return nil, fmt.Errorf("parse search page for %q: %w", term, err)
		}
		if all == nil {
			all = anchors
		} else {
			all = all.AddSelection(anchors)
		}
	}
	return all, nil
}

func searchURL(search model.SearchConfig, term, sort string) string {
	return fmt.Sprintf(
		"https://www.facebook.com/marketplace/%s/search?query=%s&sortBy=%s&daysSinceListed=%d&exact=false&radius_in_km=%d",
		search.CityCode, url.QueryEscape(term), sort, search.DaysListed, search.Radius,
	)
}

// processListing runs one anchor fragment through the pipeline. It returns
// the product and true only when every filter passed.
func (e *Engine) processListing(ctx context.Context, search model.SearchConfig,
	sel *goquery.Selection, collector *runlog.Collector) (model.Product, bool) {
	cand, err := extractor.Parse(sel)
	if err != nil {
		// Page chrome (nav links, category tiles); not a real listing, not logged.
		return model.Product{}, false
	}

	if e.cache.Contains(cand.ID) {
		collector.AddSkipped(extractor.ShortTitle(sel), "Cache hit")
		return model.Product{}, false
	}
	// Seen once looked at, not once kept: later skips must not re-notify.
	e.cache.Add(cand.ID)

	fields, err := extractor.Decompose(cand.Lines)
	if errors.Is(err, extractor.ErrMalformed) {
		collector.AddSkipped(extractor.ShortTitle(sel), "Malformed listing")
		return model.Product{}, false
	}

	miles, duration, err := e.distance.Distance(ctx, e.origin, fields.Location)
	if err != nil {
		e.log.Error("distance lookup", "search_id", search.ID, "location", fields.Location, "error", err)
		return model.Product{}, false
	}
	if miles > float64(search.Radius) {
		collector.AddSkipped(fields.Title,
			fmt.Sprintf("Outside radius (%s - %d mi)", fields.Location, int(math.Round(miles))))
		return model.Product{}, false
	}

	listingURL := extractor.ListingURL(cand.Href)
	detailHTML, err := e.browser.ListingPage(ctx, listingURL)
	if err != nil {
		e.log.Error("fetch listing detail", "search_id", search.ID, "url", listingURL, "error", err)
		return model.Product{}, false
	}
	detail, err := extractor.ParseDetail(detailHTML)
	if err != nil {
		e.log.Error("parse listing detail", "search_id", search.ID, "url", listingURL, "error", err)
		return model.Product{}, false
	}

	verdict, err := e.quality.Check(ctx, quality.Input{
		Title:       fields.Title,
		Terms:       search.Terms,
		TargetPrice: search.TargetPrice,
		Price:       fields.Price,
		Description: detail.Description,
		Context:     search.Context,
	})
	if err != nil {
		e.log.Error("quality check", "search_id", search.ID, "title", fields.Title, "error", err)
		return model.Product{}, false
	}
	if !verdict.Passed {
		collector.AddSkippedListing(fields.Title,
			"Quality check failed: "+truncate(verdict.Trace, 200), listingURL, fields.Price)
		return model.Product{}, false
	}

	product := model.Product{
		Price:       fields.Price,
		Title:       fields.Title,
		Description: detail.Description,
		Location:    fields.Location,
		Date:        detail.Date,
		URL:         listingURL,
		Img:         cand.Img,
	}
	collector.AddKept(fields.Title, "Matched", product.URL, fields.Price)

	if err := e.notifier.SendProduct(ctx, search.Channel, product, miles, duration, verdict.Trace); err != nil {
		e.log.Error("send product", "search_id", search.ID, "channel", search.Channel, "error", err)
	}

	// Persist after every kept listing so a crash loses at most the
	// in-flight entry.
	if err := e.cache.Save(); err != nil {
		e.log.Error("save cache", "error", err)
	}

	e.listingDelay()
	return product, true
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// truncate shortens s to at most n bytes without splitting a rune, so the
// skip reason stays valid UTF-8 for the feed channel.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
