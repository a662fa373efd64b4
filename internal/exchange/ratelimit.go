package exchange

import (
	"sync"
	"time"
)

// RateLimiter is a per-second sliding-window limiter. It maintains a queue
// of recent request timestamps; take() drops entries older than 1s, and if
// the queue is already at capacity it sleeps until the oldest entry falls
// out of the window before admitting the caller (spec.md §4.6, §8 scenario 1).
//
// nowFn/sleepFn are seams for synthetic time in tests; they default to the
// real wall clock and time.Sleep.
type RateLimiter struct {
	mu       sync.Mutex
	cap      int
	window   time.Duration
	recent   []time.Time
	nowFn    func() time.Time
	sleepFn  func(time.Duration)
}

// NewRateLimiter creates a limiter admitting at most cap requests in any
// trailing window (spec.md default: 1s).
func NewRateLimiter(cap int, window time.Duration) *RateLimiter {
	if cap <= 0 {
		cap = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &RateLimiter{
		cap:     cap,
		window:  window,
		recent:  make([]time.Time, 0, cap),
		nowFn:   time.Now,
		sleepFn: time.Sleep,
	}
}

// WithClock overrides the clock/sleep seams for deterministic tests.
func (r *RateLimiter) WithClock(nowFn func() time.Time, sleepFn func(time.Duration)) *RateLimiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nowFn = nowFn
	r.sleepFn = sleepFn
	return r
}

// Take blocks, if necessary, until admitting one more request would not
// exceed cap requests within the trailing window, then records the request.
func (r *RateLimiter) Take() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		now := r.nowFn()
		cutoff := now.Add(-r.window)
		// Drop entries older than the window.
		i := 0
		for i < len(r.recent) && !r.recent[i].After(cutoff) {
			i++
		}
		if i > 0 {
			r.recent = append(r.recent[:0], r.recent[i:]...)
		}

		if len(r.recent) < r.cap {
			r.recent = append(r.recent, now)
			return
		}

		// At capacity: sleep until the oldest entry ages out of the window.
		oldest := r.recent[0]
		wait := oldest.Add(r.window).Sub(now)
		if wait <= 0 {
			continue
		}
		r.mu.Unlock()
		r.sleepFn(wait)
		r.mu.Lock()
	}
}

// Usage returns the current queue depth and configured cap, for health/metrics.
func (r *RateLimiter) Usage() (used, cap int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.recent), r.cap
}
