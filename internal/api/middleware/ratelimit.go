// SPDX-License-Identifier: MIT

package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitConfig holds configuration for the rate limiting middleware.
type RateLimitConfig struct {
	// RequestLimit is the maximum number of requests allowed in the window.
	RequestLimit int
	// WindowSize is the time window for rate limiting.
	WindowSize time.Duration
	// KeyFunc extracts the rate limit key from the request. Defaults to
	// IP-based limiting.
	KeyFunc func(r *http.Request) (string, error)
}

// RateLimit creates a rate limiting middleware on httprate's sliding window
// counter. Rejected requests get a problem+json 429 with a Retry-After
// header.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}

	retryAfter := strconv.Itoa(int(math.Ceil(cfg.WindowSize.Seconds())))

	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowSize,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/problem+json")
			w.Header().Set("Retry-After", retryAfter)
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"type":"error/rate_limit_exceeded","title":"Rate limit exceeded - too many requests","status":429,"code":"RATE_LIMIT_EXCEEDED"}`))
		}),
	)
}

// APIRateLimit builds the global API limiter from the application
// configuration. The sustained rate is rps; a burst larger than rps widens
// the window so short spikes pass while the average rate holds.
func APIRateLimit(enabled bool, rps, burst int) func(http.Handler) http.Handler {
	if !enabled || rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	limit := rps
	window := time.Second
	if burst > rps {
		limit = burst
		window = time.Duration(float64(burst) / float64(rps) * float64(time.Second))
	}
	return RateLimit(RateLimitConfig{RequestLimit: limit, WindowSize: window})
}
