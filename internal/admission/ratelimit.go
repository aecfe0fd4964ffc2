package admission

import (
	"strconv"
	"sync"
	"time"
)

type rateBucket struct {
	start   time.Time
	count   int
	counted map[string]struct{}
}

// RateLimiter admits at most limit events per user per fixed window. Windows
// are aligned to the clock and never extended; the first event after a
// boundary starts a fresh allowance.
type RateLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	buckets map[string]*rateBucket
}

// NewRateLimiter creates a RateLimiter.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string]*rateBucket),
	}
}

// Allow checks and, if admitted, counts one event for userID at now. A
// non-empty retryKey already counted in the current window is admitted again
// without a second increment.
func (r *RateLimiter) Allow(userID, retryKey string, now time.Time) bool {
	start := now.Truncate(r.window)
	key := userID + "|" + strconv.FormatInt(start.Unix(), 10)

	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buckets[key]
	if !ok {
		b = &rateBucket{start: start, counted: make(map[string]struct{})}
		r.buckets[key] = b
	}
	if retryKey != "" {
		if _, seen := b.counted[retryKey]; seen {
			return true
		}
	}
	if b.count >= r.limit {
		return false
	}
	b.count++
	if retryKey != "" {
		b.counted[retryKey] = struct{}{}
	}
	return true
}

// Count returns the number of admitted events for userID in the window
// containing now.
func (r *RateLimiter) Count(userID string, now time.Time) int {
	key := userID + "|" + strconv.FormatInt(now.Truncate(r.window).Unix(), 10)
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.buckets[key]; ok {
		return b.count
	}
	return 0
}

// Sweep drops buckets whose window started more than maxAge before now.
func (r *RateLimiter) Sweep(now time.Time, maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	purged := 0
	for key, b := range r.buckets {
		if now.Sub(b.start) > maxAge {
			delete(r.buckets, key)
			purged++
		}
	}
	return purged
}

// Len returns the number of live buckets.
func (r *RateLimiter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buckets)
}
