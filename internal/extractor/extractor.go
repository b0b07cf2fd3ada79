// Package extractor turns raw marketplace anchor fragments into structured
// listing candidates.
//
// The title/location/price split is positional and tracks the current
// marketplace markup; upstream layout changes break here first, which is why
// the heuristic lives behind Decompose and nowhere else.
package extractor

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Skip classes for listing fragments.
var (
	// ErrNotListing marks page chrome (nav links, category tiles) that lacks
	// the image-alt and item-link signals every genuine listing carries.
	ErrNotListing = errors.New("invalid listing")
	// ErrMalformed marks a genuine listing fragment with too little text to
	// decompose.
	ErrMalformed = errors.New("malformed listing")
)

var (
	itemPathPattern = regexp.MustCompile(`^/marketplace/item/(\d+)`)
	mileagePattern  = regexp.MustCompile(`(?i)\d[\d,.]*[Kk]?\s*(?:miles?|mi)\b`)
	numericPattern  = regexp.MustCompile(`\d[\d,.]*`)
)

// Candidate is a structurally valid listing fragment awaiting decomposition.
type Candidate struct {
	ID    string
	Href  string
	Img   string
	Lines []string
}

// Fields holds the decomposed text of a listing.
type Fields struct {
	Title    string
	Location string
	Price    float64
}

// Parse validates the structural shape of an anchor fragment: an embedded
// image carrying an alt attribute and a marketplace-item href. Fragments
// failing either check return ErrNotListing. The numeric ID from the href is
// the dedup key.
func Parse(sel *goquery.Selection) (*Candidate, error) {
	img := sel.Find("img").First()
	if img.Length() == 0 {
		return nil, ErrNotListing
	}
	if _, ok := img.Attr("alt"); !ok {
		return nil, ErrNotListing
	}
	href, ok := sel.Attr("href")
	if !ok {
		return nil, ErrNotListing
	}
	m := itemPathPattern.FindStringSubmatch(href)
	if m == nil {
		return nil, ErrNotListing
	}
	src, _ := img.Attr("src")
	return &Candidate{
		ID:    m[1],
		Href:  href,
		Img:   src,
		Lines: TextLines(sel),
	}, nil
}

// Decompose splits the stripped text lines of a listing into title, location
// and price.
//
// Vehicle listings carry a trailing mileage line: [price, title, location,
// mileage]. Regular listings: [price, title, location]. Price is the first
// line containing a numeric token; a listing with no numeric token gets
// price 0.
func Decompose(lines []string) (Fields, error) {
	if len(lines) < 2 {
		return Fields{}, ErrMalformed
	}

	var f Fields
	if len(lines) >= 4 && mileagePattern.MatchString(lines[len(lines)-1]) {
		f.Title = lines[len(lines)-3]
		f.Location = lines[len(lines)-2]
	} else {
		f.Title = lines[len(lines)-2]
		f.Location = lines[len(lines)-1]
	}

	for _, line := range lines {
		m := numericPattern.FindString(line)
		if m == "" {
			continue
		}
		price, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
		if err != nil {
			continue
		}
		f.Price = price
		break
	}

	return f, nil
}

// TextLines returns the stripped, non-empty text nodes of a fragment in
// document order.
func TextLines(sel *goquery.Selection) []string {
	var lines []string
	for _, node := range sel.Nodes {
		collectText(node, &lines)
	}
	return lines
}

func collectText(n *html.Node, lines *[]string) {
	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			*lines = append(*lines, text)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, lines)
	}
}

// ShortTitle extracts a minimal title from a fragment for logging, falling
// back to the href when the fragment has no text at all.
func ShortTitle(sel *goquery.Selection) string {
	if lines := TextLines(sel); len(lines) > 0 {
		return truncate(lines[0], 80)
	}
	if href, ok := sel.Attr("href"); ok && href != "" {
		return truncate(href, 80)
	}
	return "Unknown listing"
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

// ListingURL canonicalizes a marketplace href into an absolute URL with the
// query string stripped.
func ListingURL(href string) string {
	if i := strings.IndexByte(href, '?'); i >= 0 {
		href = href[:i]
	}
	return "https://facebook.com" + href
}

// Anchors parses a rendered search results page and returns its anchor
// elements.
func Anchors(pageHTML string) (*goquery.Selection, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, err
	}
	return doc.Find("a"), nil
}

// Detail holds the fields scraped from a listing detail page.
type Detail struct {
	Date        string
	Description string
}

// Marketplace description container classes; as fragile as every other
// marketplace selector in this package.
const descriptionSelector = "div.xz9dl7a.xyri2b.xsag5q8.x1c1uobl.x126k92a span[dir=auto]"

// ParseDetail scrapes the posting date and description out of a rendered
// listing detail page. Missing fields fall back to safe defaults rather
// than erroring: a detail page without a visible date or description is a
// normal marketplace variant, not a failure.
func ParseDetail(pageHTML string) (Detail, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return Detail{}, err
	}

	d := Detail{Date: "Last 24h", Description: "No Description."}
	if abbr := doc.Find("abbr").First(); abbr.Length() > 0 {
		if text := strings.TrimSpace(abbr.Text()); text != "" {
			d.Date = text
		}
	}
	if desc := doc.Find(descriptionSelector).First(); desc.Length() > 0 {
		if text := strings.TrimSpace(desc.Text()); text != "" {
			d.Description = text
		}
	}
	return d, nil
}
