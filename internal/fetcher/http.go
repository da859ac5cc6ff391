package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/sports-qc/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	Policy    resilience.Policy
	// DefaultRate applies to hosts without an entry in HostRates.
	DefaultRate rate.Limit
	HostRates   map[string]rate.Limit
}

// AdaptiveLimiter wraps a rate.Limiter with adaptive rate adjustment.
// On success it increases the rate by 20% (up to 2x initial).
// On 429 it halves the rate (down to initial/4 minimum).
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive rate limiter that auto-tunes.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		maxRate:     initialRate * 2,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess increases the rate by 20%, up to 2x initial.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentRate = min(a.currentRate*1.2, a.maxRate)
	a.limiter.SetLimit(a.currentRate)
}

// OnRateLimit halves the rate on 429 responses.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentRate = max(a.currentRate*0.5, a.minRate)
	a.limiter.SetLimit(a.currentRate)
	zap.L().Warn("fetcher: reducing rate after 429",
		zap.Float64("new_rate", float64(a.currentRate)),
	)
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// DefaultHostRates returns request rates for the stat providers scraped most often.
func DefaultHostRates() map[string]rate.Limit {
	return map[string]rate.Limit{
		"statsapi.mlb.com":       10,
		"baseballsavant.mlb.com": 2,
		"stats.ncaa.org":         1,
	}
}

// HTTPFetcher implements Fetcher with per-host adaptive rate limiting and retry.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu       sync.Mutex
	limiters map[string]*AdaptiveLimiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "sports-qc/1.0"
	}
	if opts.DefaultRate == 0 {
		opts.DefaultRate = 20
	}
	if opts.HostRates == nil {
		opts.HostRates = DefaultHostRates()
	}
	if opts.Policy.MaxAttempts == 0 {
		opts.Policy = resilience.DefaultPolicy()
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: make(map[string]*AdaptiveLimiter),
	}
}

// limiterFor returns the limiter for host, creating it on first use.
func (f *HTTPFetcher) limiterFor(host string) *AdaptiveLimiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if lim, ok := f.limiters[host]; ok {
		return lim
	}
	r, ok := f.opts.HostRates[host]
	if !ok {
		r = f.opts.DefaultRate
	}
	lim := NewAdaptiveLimiter(r, max(1, int(r)))
	f.limiters[host] = lim
	return lim
}

// Download fetches the URL and returns the response body. 429 and 5xx
// responses are retried under the configured policy.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: parse url")
	}
	lim := f.limiterFor(u.Host)
	log := zap.L().With(zap.String("component", "fetcher"), zap.String("url", rawURL))

	return resilience.RetryValue(ctx, f.opts.Policy, "download "+u.Host, func(ctx context.Context) (io.ReadCloser, error) {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: create request")
		}
		req.Header.Set("User-Agent", f.opts.UserAgent)
		req.Header.Set("Accept", "application/json, text/csv")

		resp, err := f.client.Do(req)
		if err != nil {
			log.Warn("fetcher: request failed", zap.Error(err))
			return nil, resilience.Transient(eris.Wrap(err, "fetcher: request"), 0)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			lim.OnSuccess()
			return resp.Body, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			lim.OnRateLimit()
		}
		_ = resp.Body.Close()

		statusErr := eris.Errorf("fetcher: unexpected status %d from %s", resp.StatusCode, rawURL)
		if resilience.TransientStatus(resp.StatusCode) {
			log.Warn("fetcher: retryable status", zap.Int("status", resp.StatusCode))
			return nil, resilience.Transient(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	})
}
