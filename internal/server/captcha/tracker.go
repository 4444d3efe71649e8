package captcha

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultThreshold = 3
	DefaultWindow    = time.Hour
	defaultSize      = 10000
)

// FailureTracker counts failed logins per origin. Counters expire after the
// window and the cache is bounded, so a flood of origins cannot grow it
// without limit.
type FailureTracker struct {
	threshold int

	mu       sync.Mutex
	failures *expirable.LRU[string, int]
}

func NewFailureTracker(threshold int, window time.Duration) *FailureTracker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &FailureTracker{
		threshold: threshold,
		failures:  expirable.NewLRU[string, int](defaultSize, nil, window),
	}
}

// Required reports whether the origin must present a verification token.
func (t *FailureTracker) Required(origin string) bool {
	return t.Failures(origin) >= t.threshold
}

func (t *FailureTracker) Failures(origin string) int {
	n, _ := t.failures.Get(origin)
	return n
}

// RecordFailure increments the origin's counter and returns the new value.
func (t *FailureTracker) RecordFailure(origin string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, _ := t.failures.Get(origin)
	n++
	t.failures.Add(origin, n)
	return n
}

func (t *FailureTracker) Clear(origin string) {
	t.failures.Remove(origin)
}
