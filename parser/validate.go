package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/LielaXea/ecommerce-scraper/models"
)

// ErrMissingName rejects a record whose name is empty after trimming.
type ErrMissingName struct{}

func (ErrMissingName) Error() string { return "missing_name" }

// ErrUnparsablePrice rejects a record whose price text holds no numeric value.
type ErrUnparsablePrice struct {
	Text string
}

func (e ErrUnparsablePrice) Error() string {
	return fmt.Sprintf("unparsable_price: %q", e.Text)
}

// RejectReason maps a validation error to its RunSummary reason label.
func RejectReason(err error) string {
	switch err.(type) {
	case ErrMissingName:
		return "missing_name"
	case ErrUnparsablePrice:
		return "unparsable_price"
	default:
		return "invalid_record"
	}
}

var (
	priceNumberRe = regexp.MustCompile(`\d+(?:[.,]\d+)*(?:\.\d+)?`)
	currencyRe    = regexp.MustCompile(`[£$€¥]|(?i)\b(GBP|USD|EUR|JPY)\b`)
)

// RecordValidator turns raw field-sets into normalized product records.
// Validation is pure: a RawProduct either becomes a Product or is rejected,
// never both and never partially.
type RecordValidator struct {
	base *url.URL
}

// NewRecordValidator resolves relative product links against baseURL.
func NewRecordValidator(baseURL string) (*RecordValidator, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &RecordValidator{base: base}, nil
}

// Validate normalizes raw and returns the typed record, or a rejection
// error of type ErrMissingName or ErrUnparsablePrice.
func (v *RecordValidator) Validate(raw models.RawProduct, page int, scrapedAt time.Time) (*models.Product, error) {
	name := strings.TrimSpace(raw.Name)
	if name == "" {
		return nil, ErrMissingName{}
	}

	price, currency, err := ParsePrice(raw.Price)
	if err != nil {
		return nil, err
	}

	availability := MapAvailability(raw.Availability)

	return &models.Product{
		Name:         name,
		Price:        price,
		Currency:     currency,
		Rating:       RatingToNumeric(raw.Rating),
		Availability: availability,
		InStock:      availability == models.AvailabilityInStock,
		URL:          v.resolve(raw.Link),
		ImageURL:     v.resolve(raw.Image),
		Page:         page,
		ScrapedAt:    scrapedAt,
	}, nil
}

// ParsePrice extracts a non-negative decimal and an optional currency token
// from free-form price text. Thousands separators are stripped; text with no
// recoverable number is rejected.
func ParsePrice(text string) (float64, string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, "", ErrUnparsablePrice{Text: text}
	}

	currency := currencyRe.FindString(trimmed)

	number := priceNumberRe.FindString(trimmed)
	if number == "" {
		return 0, "", ErrUnparsablePrice{Text: text}
	}

	// "1,234.50" keeps the dot as the decimal point; "1,234" is a
	// thousands-grouped integer.
	if strings.Contains(number, ".") {
		number = strings.ReplaceAll(number, ",", "")
	} else if parts := strings.Split(number, ","); len(parts) > 1 {
		last := parts[len(parts)-1]
		if len(last) == 3 {
			number = strings.Join(parts, "")
		} else {
			number = strings.Join(parts[:len(parts)-1], "") + "." + last
		}
	}

	price, err := strconv.ParseFloat(number, 64)
	if err != nil || price < 0 {
		return 0, "", ErrUnparsablePrice{Text: text}
	}
	return price, currency, nil
}

// MapAvailability maps free-form availability text onto the fixed enum by
// case-insensitive substring matching.
func MapAvailability(text string) models.Availability {
	lowered := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.Contains(lowered, "out of stock"), strings.Contains(lowered, "unavailable"), strings.Contains(lowered, "sold out"):
		return models.AvailabilityOutOfStock
	case strings.Contains(lowered, "in stock"), strings.Contains(lowered, "available"):
		return models.AvailabilityInStock
	default:
		return models.AvailabilityUnknown
	}
}

// RatingToNumeric converts the textual rating to a numeric scale.
func RatingToNumeric(rating string) int {
	switch strings.TrimSpace(rating) {
	case "One":
		return 1
	case "Two":
		return 2
	case "Three":
		return 3
	case "Four":
		return 4
	case "Five":
		return 5
	default:
		return 0
	}
}

func (v *RecordValidator) resolve(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	ref, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return v.base.ResolveReference(ref).String()
}
