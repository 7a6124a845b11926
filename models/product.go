// Package models defines data structures for the scraper.
package models

import "time"

// Availability is the normalized stock state of a product.
type Availability string

const (
	AvailabilityInStock    Availability = "in_stock"
	AvailabilityOutOfStock Availability = "out_of_stock"
	AvailabilityUnknown    Availability = "unknown"
)

// RawProduct is the unvalidated field-set extracted from one product
// block on a listing page. Missing sub-fields are empty strings.
type RawProduct struct {
	Name         string
	Price        string
	Rating       string
	Availability string
	Link         string
	Image        string
}

// Product is a validated catalog item ready for export.
type Product struct {
	Name         string       `csv:"name" json:"name"`
	Price        float64      `csv:"price" json:"price"`
	Currency     string       `csv:"currency" json:"currency,omitempty"`
	Rating       int          `csv:"rating" json:"rating"`
	Availability Availability `csv:"availability" json:"availability"`
	InStock      bool         `csv:"in_stock" json:"in_stock"`
	URL          string       `csv:"url" json:"url,omitempty"`
	ImageURL     string       `csv:"image_url" json:"image_url,omitempty"`
	Page         int          `csv:"page" json:"page"`
	ScrapedAt    time.Time    `csv:"scraped_at" json:"scraped_at"`
}

// PageError records one failure with enough context for post-run reporting.
// Reason is an error-type label such as "http_error" or "unparsable_price".
type PageError struct {
	Page   int    `csv:"page" json:"page"`
	Reason string `csv:"reason" json:"reason"`
}

// RunSummary holds the aggregate outcome of a scraping run. Records and
// Errors are ordered by page number.
type RunSummary struct {
	PagesAttempted int
	PagesSucceeded int
	PagesFailed    int
	Records        []*Product
	Errors         []PageError
	StartTime      time.Time
	EndTime        time.Time
	RequestCount   int
	RetryCount     int
	DuplicateCount int
}

// Duration is the wall-clock time the run took.
func (s *RunSummary) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}
