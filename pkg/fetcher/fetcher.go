// Package fetcher implements the sliding-window rate-limited, bounded
// concurrency HTTP client used to pull market data from the vendor. It
// replaces the teacher's unbounded pkg/feed/polygon.go, grounded instead on
// the vendor data client's RateLimiter/PolygonFetcher: semaphore permit
// acquired first, then the rate limiter, then the HTTP round trip, with
// fixed 2s/4s/8s backoff retries on 429 and on timeout.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/ridgeline-quant/ntengine/pkg/errs"
	"github.com/ridgeline-quant/ntengine/pkg/logging"
)

const polygonBase = "https://api.polygon.io"

var retryBackoffs = []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}

// Fetcher is a shared HTTP client with concurrency control, rate limiting,
// and retry logic in front of the market-data vendor.
type Fetcher struct {
	client  *http.Client
	apiKey  string
	sem     *semaphore.Weighted
	limiter *RateLimiter
	log     zerolog.Logger
	cache   *DiskCache
}

func New(apiKey string, maxConcurrent, ratePerMinute int) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
			},
		},
		apiKey:  apiKey,
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		limiter: NewRateLimiter(ratePerMinute),
		log:     logging.For("fetcher"),
	}
}

// WithCache attaches a disk cache that FetchDailyBars consults before
// hitting the vendor and populates after a successful fetch. Returns f for
// chaining at construction time.
func (f *Fetcher) WithCache(cache *DiskCache) *Fetcher {
	f.cache = cache
	return f
}

// Get performs a GET request against url, observing the concurrency permit,
// rate limit, and retry policy, and returns the parsed JSON body.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (map[string]any, error) {
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return nil, errs.Wrap(errs.Timeout, err)
	}
	defer f.sem.Release(1)

	var lastErr error
	attempts := append([]time.Duration{0}, retryBackoffs...)
	for attempt, backoff := range attempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, errs.Wrap(errs.Timeout, ctx.Err())
			case <-time.After(backoff):
			}
		}

		f.limiter.Acquire()

		fullURL := withAPIKey(rawURL, f.apiKey)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidData, err)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			lastErr = err
			if isTimeout(err) {
				continue
			}
			return nil, errs.Wrap(errs.ApiError, err)
		}

		body, readErr := decodeBody(resp)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, errs.New(errs.ApiError, fmt.Sprintf("http %d", resp.StatusCode))
		}
		if readErr != nil {
			return nil, errs.Wrap(errs.InvalidData, readErr)
		}
		return body, nil
	}

	return nil, errs.New(errs.RateLimited, lastErr.Error())
}

// PolygonURL joins a vendor API path onto the base host.
func PolygonURL(path string) string {
	return polygonBase + path
}

func withAPIKey(rawURL, apiKey string) string {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + "apiKey=" + url.QueryEscape(apiKey)
}

func decodeBody(resp *http.Response) (map[string]any, error) {
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	if t, ok := err.(timeout); ok {
		return t.Timeout()
	}
	return false
}

// NextURL extracts vendor-style pagination ("next_url") from a decoded
// response body, if present.
func NextURL(body map[string]any) (string, bool) {
	v, ok := body["next_url"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
