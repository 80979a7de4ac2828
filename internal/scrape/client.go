// SPDX-License-Identifier: MIT

package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/eardbi/bike-builds-api/internal/model"
)

// Client talks to an external scrape worker service. The daemon constructs
// one only when a worker URL is configured.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration
	userAgent  string
	mu         sync.Mutex
	rnd        *rand.Rand
}

// ClientOptions configures the worker client.
type ClientOptions struct {
	Timeout    time.Duration
	Rate       rate.Limit
	Burst      int
	MaxRetries int
	Backoff    time.Duration
	MaxBackoff time.Duration
	UserAgent  string
}

const (
	defaultClientTimeout = 30 * time.Second
	defaultClientRetries = 2
	defaultBackoff       = 200 * time.Millisecond
	defaultMaxBackoff    = 2 * time.Second
	defaultRate          = rate.Limit(1)
)

// NewClient creates a worker client for the given base URL.
func NewClient(baseURL string, opts ClientOptions) *Client {
	opts = normalizeClientOptions(opts)

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}

	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		limiter:    rate.NewLimiter(opts.Rate, opts.Burst),
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		maxBackoff: opts.MaxBackoff,
		userAgent:  opts.UserAgent,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- jitter only
	}
}

func normalizeClientOptions(opts ClientOptions) ClientOptions {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultClientTimeout
	}
	if opts.Rate <= 0 {
		opts.Rate = defaultRate
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultClientRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = "bike-builds-api"
	}
	return opts
}

// ScrapePage asks the worker to scrape one target and returns the reported
// results keyed by attribution. Unkeyed results are attributed to the
// target's listing.
func (c *Client) ScrapePage(ctx context.Context, target Target) (map[model.ID][]model.ScrapeResult, error) {
	body, err := json.Marshal(target)
	if err != nil {
		return nil, fmt.Errorf("encode target: %w", err)
	}

	data, err := c.post(ctx, "/scrape/page", body)
	if err != nil {
		return nil, err
	}

	results, err := model.DecodeScrapeResults(data)
	if err != nil {
		return nil, fmt.Errorf("worker response: %w", err)
	}

	if unkeyed, ok := results[""]; ok {
		key := model.ResultKey(target.PartID, target.VariantID)
		results[key] = append(results[key], unkeyed...)
		delete(results, "")
	}
	return results, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	url := c.baseURL + path

	maxAttempts := c.maxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err == nil {
			data, status, readErr := drain(resp)
			switch {
			case readErr != nil:
				lastErr = readErr
			case status == http.StatusOK:
				return data, nil
			case status >= http.StatusInternalServerError:
				lastErr = fmt.Errorf("worker returned status %d", status)
			default:
				// Client errors are not retryable.
				return nil, fmt.Errorf("worker returned status %d", status)
			}
		} else {
			lastErr = err
		}

		if attempt == maxAttempts {
			break
		}
		if err := sleepWithContext(ctx, c.backoffFor(attempt-1)); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("scrape worker request failed: %w", lastErr)
}

func drain(resp *http.Response) ([]byte, int, error) {
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read worker response: %w", err)
	}
	return data, resp.StatusCode, nil
}

func (c *Client) backoffFor(attempt int) time.Duration {
	wait := c.backoff * time.Duration(1<<attempt)
	if wait > c.maxBackoff {
		wait = c.maxBackoff
	}
	jitter := time.Duration(c.randInt63n(int64(wait/5 + 1)))
	return wait + jitter
}

func (c *Client) randInt63n(n int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rnd.Int63n(n)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
