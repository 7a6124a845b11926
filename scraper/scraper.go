// Package scraper drives listing pages through fetch, parse, and validate
// stages under a bounded worker pool.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/LielaXea/ecommerce-scraper/config"
	"github.com/LielaXea/ecommerce-scraper/models"
	"github.com/LielaXea/ecommerce-scraper/parser"
)

// Run states. A scraper instance performs exactly one run.
const (
	StateIdle int32 = iota
	StateRunning
	StateFinished
)

var errAlreadyRan = errors.New("scraper: run already started")

// Scraper schedules one task per listing page and aggregates the results.
type Scraper struct {
	cfg       *config.Config
	limiter   *RateLimiter
	fetcher   *PageFetcher
	parser    *parser.PageParser
	validator *parser.RecordValidator
	Metrics   *Metrics

	state        atomic.Int32
	requestCount atomic.Int64
	retryCount   atomic.Int64
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	validator, err := parser.NewRecordValidator(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("build validator: %w", err)
	}

	metrics := NewMetrics()
	limiter := NewRateLimiter(cfg.Concurrency, cfg.RequestsPerSec)

	return &Scraper{
		cfg:       cfg,
		limiter:   limiter,
		fetcher:   NewPageFetcher(cfg, limiter, metrics),
		parser:    parser.NewPageParser(cfg.Selectors),
		validator: validator,
		Metrics:   metrics,
	}, nil
}

// WithTransport swaps the fetcher's HTTP transport. Used by tests.
func (s *Scraper) WithTransport(rt http.RoundTripper) {
	s.fetcher.WithTransport(rt)
}

// State reports the current run state.
func (s *Scraper) State() int32 {
	return s.state.Load()
}

// pageResult is the single-writer outcome of one page task.
type pageResult struct {
	page     int
	products []*models.Product
	rejects  []models.PageError
	fetchErr error
}

// Run scrapes pages [1, MaxPages] under the configured concurrency and
// returns the aggregate summary. A single page's failure never aborts the
// run; its errors are itemized in the summary instead.
func (s *Scraper) Run(ctx context.Context) (*models.RunSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !s.state.CompareAndSwap(StateIdle, StateRunning) {
		return nil, errAlreadyRan
	}
	defer s.state.Store(StateFinished)

	start := time.Now()
	slog.Info("starting run",
		slog.String("base_url", s.cfg.BaseURL),
		slog.Int("pages", s.cfg.MaxPages),
		slog.Int("workers", s.cfg.Concurrency),
	)

	// One slot per page; each task is the sole writer of its own slot, so
	// the final merge needs no re-sort beyond the slice order.
	results := make([]pageResult, s.cfg.MaxPages)

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Concurrency)
	for page := 1; page <= s.cfg.MaxPages; page++ {
		page := page
		g.Go(func() error {
			results[page-1] = s.processPage(ctx, page)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := s.merge(results)
	summary.StartTime = start
	summary.EndTime = time.Now()

	slog.Info("run finished",
		slog.Int("pages_succeeded", summary.PagesSucceeded),
		slog.Int("pages_failed", summary.PagesFailed),
		slog.Int("records", len(summary.Records)),
		slog.Duration("duration", summary.Duration()),
	)
	return summary, nil
}

func (s *Scraper) processPage(ctx context.Context, page int) pageResult {
	slog.Debug("page start", slog.Int("page", page))

	res := s.fetcher.Fetch(ctx, page)
	s.requestCount.Add(int64(res.Attempts))
	if res.Attempts > 1 {
		s.retryCount.Add(int64(res.Attempts - 1))
	}

	if res.Err != nil {
		slog.Error("page failed",
			slog.Int("page", page),
			slog.Int("attempts", res.Attempts),
			slog.String("reason", errorTypeLabel(res.Err)),
			slog.Any("error", res.Err),
		)
		s.Metrics.IncPage("failed")
		return pageResult{page: page, fetchErr: res.Err}
	}

	scrapedAt := time.Now()
	out := pageResult{page: page}
	for _, raw := range s.parser.Parse(res.Markup) {
		product, err := s.validator.Validate(raw, page, scrapedAt)
		if err != nil {
			reason := parser.RejectReason(err)
			slog.Warn("record rejected",
				slog.Int("page", page),
				slog.String("reason", reason),
				slog.String("name", raw.Name),
			)
			s.Metrics.IncReject(reason)
			out.rejects = append(out.rejects, models.PageError{Page: page, Reason: reason})
			continue
		}
		s.Metrics.IncProducts()
		out.products = append(out.products, product)
	}

	if len(out.rejects) == 0 {
		s.Metrics.IncPage("succeeded")
	} else {
		s.Metrics.IncPage("failed")
	}
	slog.Debug("page done",
		slog.Int("page", page),
		slog.Int("records", len(out.products)),
		slog.Int("rejected", len(out.rejects)),
	)
	return out
}

// merge assembles the RunSummary in page order. A page succeeds when its
// fetch succeeded and every parsed record validated; an empty page counts
// as succeeded. Records are deduplicated by product URL through a bounded
// LRU so the final output has one row per product.
func (s *Scraper) merge(results []pageResult) *models.RunSummary {
	summary := &models.RunSummary{
		PagesAttempted: len(results),
		RequestCount:   int(s.requestCount.Load()),
		RetryCount:     int(s.retryCount.Load()),
	}

	seen, err := lru.New[string, struct{}](s.cfg.DedupeMaxSize)
	if err != nil {
		// Only reachable with a non-positive size, which Validate rejects.
		seen = nil
	}

	for _, res := range results {
		if res.fetchErr != nil {
			summary.PagesFailed++
			summary.Errors = append(summary.Errors, models.PageError{
				Page:   res.page,
				Reason: errorTypeLabel(res.fetchErr),
			})
			continue
		}

		if len(res.rejects) == 0 {
			summary.PagesSucceeded++
		} else {
			summary.PagesFailed++
			summary.Errors = append(summary.Errors, res.rejects...)
		}

		for _, product := range res.products {
			if seen != nil && product.URL != "" {
				if _, dup := seen.Get(product.URL); dup {
					summary.DuplicateCount++
					continue
				}
				seen.Add(product.URL, struct{}{})
			}
			summary.Records = append(summary.Records, product)
		}
	}
	return summary
}
