package scraper

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/LielaXea/ecommerce-scraper/config"
)

// FetchResult is the terminal outcome of fetching one listing page.
// Err == nil means Markup holds the response body; otherwise Err is one of
// the typed fetch errors and Attempts counts every request that was made.
type FetchResult struct {
	Page       int
	StatusCode int
	Markup     string
	Attempts   int
	Err        error
}

// PageFetcher issues one HTTP GET per listing page with retry, backoff,
// and a rotating request identity. All failure modes surface in the
// returned FetchResult; nothing escapes as a panic.
type PageFetcher struct {
	cfg     *config.Config
	client  *http.Client
	limiter *RateLimiter
	metrics *Metrics
}

// NewPageFetcher builds a fetcher sharing limiter across all its callers.
func NewPageFetcher(cfg *config.Config, limiter *RateLimiter, metrics *Metrics) *PageFetcher {
	return &PageFetcher{
		cfg: cfg,
		client: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   cfg.Timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		limiter: limiter,
		metrics: metrics,
	}
}

// WithTransport swaps the HTTP transport. Used by tests to inject mocks.
func (f *PageFetcher) WithTransport(rt http.RoundTripper) {
	f.client.Transport = rt
}

// Fetch retrieves one listing page. Transient failures (timeout, network
// error, 5xx, 429) are retried up to MaxRetries extra attempts with capped
// exponential backoff; other 4xx responses fail immediately. Each attempt
// re-acquires the rate limiter, since a retry is itself a new request.
func (f *PageFetcher) Fetch(ctx context.Context, page int) FetchResult {
	url := f.cfg.PageURL(page)
	maxAttempts := f.cfg.MaxRetries + 1

	var lastErr error
	var lastStatus int
	attempts := 0

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := f.limiter.Acquire(ctx); err != nil {
			return FetchResult{Page: page, Attempts: attempts, Err: err}
		}
		attempts = attempt
		markup, status, err := f.attempt(ctx, url)
		f.limiter.Release()

		if err == nil {
			return FetchResult{Page: page, StatusCode: status, Markup: markup, Attempts: attempts}
		}
		lastErr = err
		lastStatus = status
		f.metrics.IncError(errorTypeLabel(err))

		if !isTransient(err) || attempt == maxAttempts {
			break
		}

		delay := f.backoff(attempt)
		slog.Warn("page fetch retry",
			slog.Int("page", page),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", delay),
			slog.Any("error", err),
		)
		f.metrics.IncRetries()
		select {
		case <-ctx.Done():
			return FetchResult{Page: page, Attempts: attempts, Err: ctx.Err()}
		case <-time.After(delay):
		}
	}

	return FetchResult{Page: page, StatusCode: lastStatus, Attempts: attempts, Err: lastErr}
}

func (f *PageFetcher) attempt(ctx context.Context, url string) (string, int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, ErrConnection{Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	start := time.Now()
	f.metrics.IncRequest("started")
	resp, err := f.client.Do(req)
	if err != nil {
		return "", 0, classifyError(err, 0)
	}
	defer resp.Body.Close()
	f.metrics.ObserveDuration(time.Since(start))

	if err := classifyError(nil, resp.StatusCode); err != nil {
		io.Copy(io.Discard, resp.Body)
		return "", resp.StatusCode, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, classifyError(err, 0)
	}
	return string(body), resp.StatusCode, nil
}

// userAgent picks a random identity from the configured pool per attempt.
func (f *PageFetcher) userAgent() string {
	pool := f.cfg.UserAgents
	if len(pool) == 0 {
		return ""
	}
	return pool[rand.Intn(len(pool))]
}

// backoff doubles the base delay per attempt, caps it, and adds jitter so
// concurrent retries do not line up.
func (f *PageFetcher) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := f.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := f.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay + time.Duration(rand.Int63n(int64(delay)/4+1))
}
