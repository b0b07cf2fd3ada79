// Package model defines the domain types used across the application.
package model

import "time"

// SearchConfig describes one watched marketplace search.
type SearchConfig struct {
	ID          string
	Terms       []string
	Channel     int64
	TargetPrice string
	Context     string
	CityCode    string
	City        string
	DaysListed  int
	Radius      int
	CreatedAt   time.Time
}

// Default locale values applied when /watch omits them.
const (
	DefaultCityCode   = "107976589222439"
	DefaultCity       = "Harrisburg, PA"
	DefaultDaysListed = 1
	DefaultRadius     = 30
)

// Product is a listing that passed every filter, ready for notification.
// It is handed to the sink immediately and never persisted.
type Product struct {
	Price       float64
	Title       string
	Description string
	Location    string
	Date        string
	URL         string
	Img         string
}

// Outcome is the terminal decision for one listing in a run.
type Outcome string

// Every listing ends a run with exactly one of these.
const (
	OutcomeKept    Outcome = "KEPT"
	OutcomeSkipped Outcome = "SKIPPED"
)

// ListingLog records one listing decision within a search run.
type ListingLog struct {
	SearchID string
	Title    string
	Outcome  Outcome
	Reason   string
	URL      string
	Price    *float64
}
