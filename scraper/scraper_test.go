package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/LielaXea/ecommerce-scraper/config"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://example.test"
	cfg.MaxPages = 3
	cfg.Concurrency = 4
	cfg.RequestsPerSec = 10000
	cfg.MaxRetries = 2
	cfg.RetryBackoff = time.Millisecond
	cfg.RetryBackoffMax = 2 * time.Millisecond
	return cfg
}

func productBlock(id int, price string) string {
	return fmt.Sprintf(`<article class="product_pod">
		<h3><a href="catalogue/item-%d/index.html" title="Item %d">Item %d</a></h3>
		<p class="price_color">%s</p>
		<p class="star-rating Two"></p>
		<p class="instock availability">In stock</p>
		<img src="media/item-%d.jpg" />
	</article>`, id, id, id, price, id)
}

func catalogPage(blocks ...string) string {
	return "<html><body><section>" + strings.Join(blocks, "") + "</section></body></html>"
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func TestRunPartialFailureAccounting(t *testing.T) {
	cfg := testConfig()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", cfg.PageURL(1),
		htmlResponder(catalogPage(productBlock(1, "£10.00"), productBlock(2, "£20.00"))))
	transport.RegisterResponder("GET", cfg.PageURL(2),
		httpmock.NewStringResponder(500, "boom"))
	transport.RegisterResponder("GET", cfg.PageURL(3),
		htmlResponder(catalogPage(productBlock(3, "Contact us"))))

	s, err := NewScraper(cfg)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	s.WithTransport(transport)

	summary, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if summary.PagesAttempted != 3 {
		t.Fatalf("pages attempted = %d, want 3", summary.PagesAttempted)
	}
	if summary.PagesSucceeded != 1 || summary.PagesFailed != 2 {
		t.Fatalf("succeeded/failed = %d/%d, want 1/2", summary.PagesSucceeded, summary.PagesFailed)
	}
	if len(summary.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(summary.Records))
	}
	for _, record := range summary.Records {
		if record.Page != 1 {
			t.Fatalf("record from page %d, want 1", record.Page)
		}
	}

	if len(summary.Errors) != 2 {
		t.Fatalf("errors = %v, want 2 entries", summary.Errors)
	}
	if summary.Errors[0].Page != 2 || summary.Errors[0].Reason != "http_error" {
		t.Fatalf("errors[0] = %+v, want page 2 http_error", summary.Errors[0])
	}
	if summary.Errors[1].Page != 3 || summary.Errors[1].Reason != "unparsable_price" {
		t.Fatalf("errors[1] = %+v, want page 3 unparsable_price", summary.Errors[1])
	}

	// page 1 and 3 take one request each, page 2 exhausts all attempts
	wantRequests := 1 + (cfg.MaxRetries + 1) + 1
	if summary.RequestCount != wantRequests {
		t.Fatalf("requests = %d, want %d", summary.RequestCount, wantRequests)
	}
	if summary.RetryCount != cfg.MaxRetries {
		t.Fatalf("retries = %d, want %d", summary.RetryCount, cfg.MaxRetries)
	}
}

func TestRunDispatchesOneTaskPerPage(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPages = 7
	cfg.MaxRetries = 0

	var hits atomic.Int64
	transport := httpmock.NewMockTransport()
	for page := 1; page <= cfg.MaxPages; page++ {
		page := page
		transport.RegisterResponder("GET", cfg.PageURL(page),
			func(req *http.Request) (*http.Response, error) {
				hits.Add(1)
				return httpmock.NewStringResponse(200, catalogPage(productBlock(page, "£1.00"))), nil
			})
	}

	s, err := NewScraper(cfg)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	s.WithTransport(transport)

	summary, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := hits.Load(); got != int64(cfg.MaxPages) {
		t.Fatalf("requests = %d, want %d", got, cfg.MaxPages)
	}
	if len(summary.Records) != cfg.MaxPages {
		t.Fatalf("records = %d, want %d", len(summary.Records), cfg.MaxPages)
	}
	for _, record := range summary.Records {
		if record.Page < 1 || record.Page > cfg.MaxPages {
			t.Fatalf("record page %d out of range", record.Page)
		}
	}
}

func TestRunPreservesPageOrderUnderSkewedLatency(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPages = 5
	cfg.MaxRetries = 0

	transport := httpmock.NewMockTransport()
	for page := 1; page <= cfg.MaxPages; page++ {
		page := page
		// earlier pages respond slower, so completion order inverts
		delay := time.Duration(cfg.MaxPages-page) * 20 * time.Millisecond
		transport.RegisterResponder("GET", cfg.PageURL(page),
			func(req *http.Request) (*http.Response, error) {
				time.Sleep(delay)
				return httpmock.NewStringResponse(200, catalogPage(productBlock(page, "£1.00"))), nil
			})
	}

	s, err := NewScraper(cfg)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	s.WithTransport(transport)

	summary, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(summary.Records) != cfg.MaxPages {
		t.Fatalf("records = %d, want %d", len(summary.Records), cfg.MaxPages)
	}
	for i, record := range summary.Records {
		if record.Page != i+1 {
			t.Fatalf("records[%d].Page = %d, want %d", i, record.Page, i+1)
		}
	}
}

func TestRunDeduplicatesByProductURL(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPages = 2
	cfg.MaxRetries = 0

	// the same product appears on both pages
	shared := productBlock(42, "£9.99")
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", cfg.PageURL(1), htmlResponder(catalogPage(shared)))
	transport.RegisterResponder("GET", cfg.PageURL(2), htmlResponder(catalogPage(shared)))

	s, err := NewScraper(cfg)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	s.WithTransport(transport)

	summary, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(summary.Records) != 1 {
		t.Fatalf("records = %d, want 1 after dedupe", len(summary.Records))
	}
	if summary.DuplicateCount != 1 {
		t.Fatalf("duplicates = %d, want 1", summary.DuplicateCount)
	}
	if summary.PagesSucceeded != 2 {
		t.Fatalf("pages succeeded = %d, want 2", summary.PagesSucceeded)
	}
}

func TestRunEmptyPageCountsSucceeded(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPages = 1
	cfg.MaxRetries = 0

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", cfg.PageURL(1),
		htmlResponder("<html><body><p>nothing for sale</p></body></html>"))

	s, err := NewScraper(cfg)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	s.WithTransport(transport)

	summary, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if summary.PagesSucceeded != 1 || summary.PagesFailed != 0 {
		t.Fatalf("succeeded/failed = %d/%d, want 1/0", summary.PagesSucceeded, summary.PagesFailed)
	}
	if len(summary.Records) != 0 || len(summary.Errors) != 0 {
		t.Fatalf("empty page should contribute nothing, got %d records %d errors",
			len(summary.Records), len(summary.Errors))
	}
}

func TestRunStateTransitions(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPages = 1
	cfg.MaxRetries = 0

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", cfg.PageURL(1), htmlResponder(catalogPage()))

	s, err := NewScraper(cfg)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	s.WithTransport(transport)

	if s.State() != StateIdle {
		t.Fatalf("state = %d, want idle", s.State())
	}
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if s.State() != StateFinished {
		t.Fatalf("state = %d, want finished", s.State())
	}
	if _, err := s.Run(context.Background()); err == nil {
		t.Fatalf("second run should be rejected")
	}
}
