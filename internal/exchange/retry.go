package exchange

import (
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// RetryConfig controls the exponential-backoff-with-jitter retry loop.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryConfig mirrors a conservative production default: a handful of
// attempts with a short base delay, matching the teacher's websocket
// reconnect defaults in scale (pkg/market/binance/websocket.go).
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 4, BaseDelay: 250 * time.Millisecond}
}

// classify decides whether an HTTP response/error is retryable.
// Transient I/O errors and 5xx/429 are retryable; 4xx other than 429,
// signing errors and malformed payloads are not (spec.md §4.6).
func classify(status int, transportErr error) (retryable bool, code ErrorCode) {
	if transportErr != nil {
		return true, CodeExchangeRetryable
	}
	switch {
	case status == http.StatusTooManyRequests:
		return true, CodeRateLimited
	case status >= 500:
		return true, CodeExchangeRetryable
	case status >= 400:
		return false, CodeExchangeFatal
	default:
		return false, ""
	}
}

// retryAfter parses a Retry-After header (seconds or HTTP-date) into a
// duration, returning ok=false if absent or unparseable.
func retryAfter(header string) (time.Duration, bool) {
	if header == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second, true
	}
	if when, err := http.ParseTime(header); err == nil {
		d := time.Until(when)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

// backoff computes the exponential-with-jitter delay for the given attempt
// (0-indexed), honoring an explicit Retry-After override when present.
func backoff(cfg RetryConfig, attempt int, retryAfterHint time.Duration) time.Duration {
	if retryAfterHint > 0 {
		return retryAfterHint
	}
	base := cfg.BaseDelay
	for i := 0; i < attempt; i++ {
		base *= 2
	}
	jitter := time.Duration(rand.Int63n(int64(base)/2 + 1))
	return base + jitter
}
