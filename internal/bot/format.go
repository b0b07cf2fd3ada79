package bot

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"dealwatch/internal/model"
)

const maxDescriptionChars = 300

// FormatProduct formats a kept listing as a notification message.
func FormatProduct(p model.Product, distance float64, duration, trace string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s — $%.0f\n\n", p.Title, p.Price)
	if p.Description != "" {
		b.WriteString(truncateText(p.Description, maxDescriptionChars))
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "%s (%.0f mi, %s)\n", p.Location, distance, duration)
	fmt.Fprintf(&b, "Posted: %s\n", p.Date)
	b.WriteString(p.URL)
	if trace != "" {
		fmt.Fprintf(&b, "\n\nVerdict: %s", trace)
	}
	return b.String()
}

// FormatSearchList formats the watched searches for display.
func FormatSearchList(searches []model.SearchConfig) string {
	if len(searches) == 0 {
		return "No watched searches yet. Use /watch <terms,...> to add one."
	}
	var b strings.Builder
	b.WriteString("Watched searches:\n")
	for _, s := range searches {
		fmt.Fprintf(&b, "\n%s — %s\n", s.ID, strings.Join(s.Terms, ", "))
		if s.TargetPrice != "" {
			fmt.Fprintf(&b, "   max price: $%s\n", s.TargetPrice)
		}
		fmt.Fprintf(&b, "   %s, radius %d mi, last %d day(s)\n", s.City, s.Radius, s.DaysListed)
		if s.Context != "" {
			fmt.Fprintf(&b, "   context: %s\n", s.Context)
		}
	}
	return b.String()
}

// FormatRunSummary formats a search run's listing log for the feed channel.
// Cache hits collapse into a single count line; everything else gets a line
// of its own.
func FormatRunSummary(searchID string, entries []model.ListingLog) string {
	var cacheHits int
	var rest []model.ListingLog
	for _, e := range entries {
		if e.Reason == "Cache hit" {
			cacheHits++
			continue
		}
		rest = append(rest, e)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Run finished: %s\n", searchID)
	if cacheHits > 0 {
		fmt.Fprintf(&b, "\n%d cache hit(s)\n", cacheHits)
	}
	for _, e := range rest {
		fmt.Fprintf(&b, "\n[%s] %s — %s\n", e.Outcome, e.Title, e.Reason)
		if e.Price != nil {
			fmt.Fprintf(&b, "   $%.0f\n", *e.Price)
		}
		if e.URL != "" {
			fmt.Fprintf(&b, "   %s\n", e.URL)
		}
	}
	if cacheHits == 0 && len(rest) == 0 {
		b.WriteString("\nNothing new.\n")
	}
	return b.String()
}

// truncateText shortens s to at most n bytes without splitting a rune;
// Telegram rejects messages that are not valid UTF-8.
func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
