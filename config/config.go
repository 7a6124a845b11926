package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Selectors describes where product data lives in the target site's markup.
// Re-targeting a different site is a matter of swapping these strings.
type Selectors struct {
	Container    string // one element per product
	Name         string // element carrying a title attribute or text
	Price        string
	Rating       string // element whose class list ends with the rating word
	Availability string
	Fallback     string // availability fallback when the primary is absent
	Link         string
	Image        string
}

// DefaultSelectors matches the books.toscrape.com catalog layout.
func DefaultSelectors() Selectors {
	return Selectors{
		Container:    "article.product_pod",
		Name:         "h3 a",
		Price:        "p.price_color",
		Rating:       "p.star-rating",
		Availability: "p.instock.availability",
		Fallback:     "p.availability",
		Link:         "h3 a",
		Image:        "img",
	}
}

// Config holds scraper configuration.
type Config struct {
	BaseURL         string
	PagePath        string // fmt template with one %d verb, joined to BaseURL
	MaxPages        int
	Concurrency     int
	RequestsPerSec  float64
	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
	UserAgents      []string
	Selectors       Selectors
	DedupeMaxSize   int
	OutputFile      string
	OutputFormat    string // csv, xlsx, or dual
	MetricsAddr     string
	LogFile         string
	Verbose         bool
}

// DefaultConfig returns conservative defaults for the demo target.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         "https://books.toscrape.com",
		PagePath:        "/catalogue/page-%d.html",
		MaxPages:        10,
		Concurrency:     5,
		RequestsPerSec:  10,
		Timeout:         10 * time.Second,
		MaxRetries:      2,
		RetryBackoff:    200 * time.Millisecond,
		RetryBackoffMax: 2 * time.Second,
		UserAgents: []string{
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Selectors:     DefaultSelectors(),
		DedupeMaxSize: 10000,
		OutputFile:    "output/products.csv",
		OutputFormat:  "csv",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if strings.Count(c.PagePath, "%d") != 1 {
		return fmt.Errorf("page path must contain exactly one %%d verb")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.RequestsPerSec <= 0 {
		return fmt.Errorf("requests per second must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if len(c.UserAgents) == 0 {
		return fmt.Errorf("user agent pool cannot be empty")
	}
	if c.Selectors.Container == "" {
		return fmt.Errorf("container selector cannot be empty")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "xlsx" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, xlsx, or dual")
	}

	return nil
}

// PageURL builds the request URL for one listing page.
func (c *Config) PageURL(page int) string {
	return strings.TrimSuffix(c.BaseURL, "/") + fmt.Sprintf(c.PagePath, page)
}

// EnvInt reads an integer environment variable. The second return value
// reports whether the variable was set.
func EnvInt(key string) (int, bool, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, true, nil
}

// EnvString reads a string environment variable.
func EnvString(key string) (string, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return "", false
	}
	return raw, true
}
