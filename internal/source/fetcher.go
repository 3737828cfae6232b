// Package source fetches raw data from the two upstreams: the Banco
// Central SGS API and CBIC's published XLSX workbooks.
package source

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Fetcher is a polite HTTP client: per-host rate limits, retries with
// jittered backoff, a stable user agent.
type Fetcher struct {
	client     *http.Client
	userAgent  string
	maxRetries int
	limiters   map[string]*rate.Limiter
	fallback   *rate.Limiter
}

// FetcherOptions configures a Fetcher. Zero values take defaults.
type FetcherOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
}

// defaultLimiters keeps requests to known upstreams well below any
// published limits. CBIC serves static files but is a small host.
func defaultLimiters() map[string]*rate.Limiter {
	return map[string]*rate.Limiter{
		"api.bcb.gov.br":       rate.NewLimiter(3, 3),
		"www.cbicdados.com.br": rate.NewLimiter(1, 2),
	}
}

func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "construction-data-pipeline/1.0"
	}
	return &Fetcher{
		client:     &http.Client{Timeout: opts.Timeout},
		userAgent:  opts.UserAgent,
		maxRetries: opts.MaxRetries,
		limiters:   defaultLimiters(),
		fallback:   rate.NewLimiter(5, 5),
	}
}

func (f *Fetcher) limiterFor(rawURL string) *rate.Limiter {
	u, err := url.Parse(rawURL)
	if err != nil {
		return f.fallback
	}
	if lim, ok := f.limiters[u.Host]; ok {
		return lim
	}
	return f.fallback
}

// Get fetches a URL and returns the response body.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < f.maxRetries; attempt++ {
		if err := f.limiterFor(rawURL).Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "source: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrapf(err, "source: build request for %s", rawURL)
		}
		req.Header.Set("User-Agent", f.userAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			lastErr = err
			zap.L().Warn("source: request failed, retrying",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			f.backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			lastErr = eris.Errorf("source: http %d from %s", resp.StatusCode, rawURL)
			zap.L().Warn("source: retryable status",
				zap.String("url", rawURL),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1))
			f.backoff(ctx, attempt)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, eris.Errorf("source: http %d from %s", resp.StatusCode, rawURL)
		}

		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = err
			f.backoff(ctx, attempt)
			continue
		}
		return body, nil
	}
	return nil, eris.Wrapf(lastErr, "source: giving up on %s after %d attempts", rawURL, f.maxRetries)
}

func (f *Fetcher) backoff(ctx context.Context, attempt int) {
	base := time.Duration(math.Pow(2, float64(attempt))) * time.Second
	jitter := time.Duration(rand.Int64N(int64(time.Second)))
	select {
	case <-time.After(base + jitter):
	case <-ctx.Done():
	}
}
