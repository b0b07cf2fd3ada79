// Package runlog accumulates per-listing decisions for one search run.
package runlog

import (
	"context"
	"log/slog"

	"dealwatch/internal/model"
)

// FeedSink receives the batched run summary for a feed channel.
type FeedSink interface {
	SendRunSummary(ctx context.Context, channelID int64, searchID string, entries []model.ListingLog) error
}

// Collector gathers ListingLog entries for a single (search, sort) run and
// flushes them once at run end.
type Collector struct {
	searchID string
	entries  []model.ListingLog
}

// NewCollector creates a Collector for the given search.
func NewCollector(searchID string) *Collector {
	return &Collector{searchID: searchID}
}

// AddKept records a listing that passed every filter.
func (c *Collector) AddKept(title, reason, url string, price float64) {
	p := price
	c.entries = append(c.entries, model.ListingLog{
		SearchID: c.searchID,
		Title:    title,
		Outcome:  model.OutcomeKept,
		Reason:   reason,
		URL:      url,
		Price:    &p,
	})
}

// AddSkipped records a listing rejected with the given reason.
func (c *Collector) AddSkipped(title, reason string) {
	c.entries = append(c.entries, model.ListingLog{
		SearchID: c.searchID,
		Title:    title,
		Outcome:  model.OutcomeSkipped,
		Reason:   reason,
	})
}

// AddSkippedListing records a rejection that carries a URL and price, such as
// a failed quality check on an otherwise complete listing.
func (c *Collector) AddSkippedListing(title, reason, url string, price float64) {
	p := price
	c.entries = append(c.entries, model.ListingLog{
		SearchID: c.searchID,
		Title:    title,
		Outcome:  model.OutcomeSkipped,
		Reason:   reason,
		URL:      url,
		Price:    &p,
	})
}

// Entries returns the collected entries.
func (c *Collector) Entries() []model.ListingLog {
	return c.entries
}

// Flush writes every entry to the logger and, when a feed channel is
// configured, sends the batch to the feed sink. The collector is reset
// afterwards. Feed delivery failures are logged, never returned: a broken
// feed channel must not fail the run.
func (c *Collector) Flush(ctx context.Context, log *slog.Logger, sink FeedSink, feedChannelID int64) {
	if len(c.entries) == 0 {
		return
	}

	for _, e := range c.entries {
		attrs := []any{
			"search_id", e.SearchID,
			"outcome", string(e.Outcome),
			"title", e.Title,
			"reason", e.Reason,
		}
		if e.Price != nil {
			attrs = append(attrs, "price", *e.Price)
		}
		log.Info("listing decision", attrs...)
	}

	if sink != nil && feedChannelID != 0 {
		if err := sink.SendRunSummary(ctx, feedChannelID, c.searchID, c.entries); err != nil {
			log.Error("send run summary", "search_id", c.searchID, "error", err)
		}
	}

	c.entries = nil
}
