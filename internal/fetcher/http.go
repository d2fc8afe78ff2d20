package fetcher

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"

	"github.com/sells-group/ahj-registry/internal/resilience"
)

// maxBodyBytes caps a single document download.
const maxBodyBytes = 64 << 20

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	// Timeout bounds each individual request.
	Timeout    time.Duration
	MaxRetries int
	// MinDelay is the minimum spacing between requests to one host.
	MinDelay time.Duration
	// RateLimitBackoff is the base wait after a 429.
	RateLimitBackoff time.Duration
	// Retry overrides the policy derived from MaxRetries and RateLimitBackoff.
	Retry *resilience.RetryConfig
}

// AdaptiveLimiter spaces requests to one host. It starts at the configured
// minimum delay, halves its rate on each 429 (down to a quarter), and
// recovers by 20% per success without ever exceeding the initial rate.
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	initialRate rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates a limiter allowing one request per minDelay.
func NewAdaptiveLimiter(minDelay time.Duration) *AdaptiveLimiter {
	r := rate.Every(minDelay)
	if minDelay <= 0 {
		r = rate.Inf
	}
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(r, 1),
		initialRate: r,
		minRate:     r / 4,
		currentRate: r,
	}
}

// Wait blocks until the limiter allows a request.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess raises the rate by 20%, up to the initial rate.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.initialRate == rate.Inf {
		return
	}
	next := a.currentRate * 1.2
	if next > a.initialRate {
		next = a.initialRate
	}
	a.currentRate = next
	a.limiter.SetLimit(next)
}

// OnRateLimit halves the rate after a 429.
func (a *AdaptiveLimiter) OnRateLimit(host string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.initialRate == rate.Inf {
		return
	}
	next := a.currentRate * 0.5
	if next < a.minRate {
		next = a.minRate
	}
	a.currentRate = next
	a.limiter.SetLimit(next)
	zap.L().Warn("rate limited, slowing down host",
		zap.String("component", "fetcher"),
		zap.String("host", host),
		zap.Float64("new_rate", float64(next)),
	)
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// HTTPFetcher implements Fetcher with per-host pacing, bounded retries and
// 403/404 short-circuiting.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions
	retry  resilience.RetryConfig

	mu       sync.Mutex
	limiters map[string]*AdaptiveLimiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "AHJ-Registry/1.0 (building-code research)"
	}
	if opts.RateLimitBackoff == 0 {
		opts.RateLimitBackoff = 5 * time.Second
	}
	var retry resilience.RetryConfig
	if opts.Retry != nil {
		retry = *opts.Retry
	} else {
		retry = resilience.DefaultRetryConfig()
		retry.MaxAttempts = opts.MaxRetries
		retry.InitialBackoff = opts.RateLimitBackoff
		retry.MaxBackoff = 8 * opts.RateLimitBackoff
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: 4,
		MaxConnsPerHost:     8,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		retry:    retry,
		limiters: make(map[string]*AdaptiveLimiter),
	}
}

// limiterFor returns the host's limiter, creating it on first use.
func (f *HTTPFetcher) limiterFor(host string) *AdaptiveLimiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = NewAdaptiveLimiter(f.opts.MinDelay)
		f.limiters[host] = lim
	}
	return lim
}

// Fetch downloads rawURL. 429 and 5xx responses and network timeouts are
// retried with backoff up to MaxRetries attempts; 403, 404 and 410 fail
// immediately with an error matching ErrPermanent.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse url %q", rawURL)
	}
	lim := f.limiterFor(u.Host)

	cfg := f.retry
	cfg.OnRetry = resilience.RetryLogger(u.Host, rawURL)
	doc, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Document, error) {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limiter wait")
		}
		return f.once(ctx, rawURL, lim, u.Host)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (f *HTTPFetcher) once(ctx context.Context, rawURL string, lim *AdaptiveLimiter, host string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/json,application/pdf;q=0.9,*/*;q=0.8")

	zap.L().Debug("fetching", zap.String("component", "fetcher"), zap.String("url", rawURL))
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: get %s", rawURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		lim.OnRateLimit(host)
		return nil, &resilience.TransientError{
			Err:        &StatusError{Code: resp.StatusCode, URL: rawURL},
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(&StatusError{Code: resp.StatusCode, URL: rawURL}, resp.StatusCode)
	case resilience.IsPermanentHTTPStatus(resp.StatusCode):
		return nil, &resilience.PermanentError{Err: &StatusError{Code: resp.StatusCode, URL: rawURL}, StatusCode: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &StatusError{Code: resp.StatusCode, URL: rawURL}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read body %s", rawURL)
	}
	lim.OnSuccess()

	ct := resp.Header.Get("Content-Type")
	body, err := decodeCharset(raw, ct)
	if err != nil {
		zap.L().Debug("charset decode failed, using raw body",
			zap.String("component", "fetcher"), zap.String("url", rawURL), zap.Error(err))
		body = raw
	}
	return &Document{
		URL:         rawURL,
		StatusCode:  resp.StatusCode,
		ContentType: ct,
		Body:        body,
		Hash:        ContentHash(raw),
	}, nil
}

// decodeCharset converts a text body in a declared non-UTF-8 charset to UTF-8.
func decodeCharset(raw []byte, contentType string) ([]byte, error) {
	if contentType == "" {
		return raw, nil
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "text/") {
		return raw, nil //nolint:nilerr
	}
	cs := strings.ToLower(params["charset"])
	if cs == "" || cs == "utf-8" || cs == "utf8" {
		return raw, nil
	}
	enc, err := htmlindex.Get(cs)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: unsupported charset %q", cs)
	}
	out, err := io.ReadAll(enc.NewDecoder().Reader(bytes.NewReader(raw)))
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: decode %s", cs)
	}
	return out, nil
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// DownloadToFile fetches the URL and writes the body to path.
func DownloadToFile(ctx context.Context, f Fetcher, rawURL, path string) (*Document, error) {
	doc, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, doc.Body, 0o600); err != nil {
		return nil, eris.Wrapf(err, "fetcher: write %s", path)
	}
	return doc, nil
}
