package admission

import (
	"context"
	"math"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// DefaultCacheSize bounds the number of origins a MemoryGate tracks.
const DefaultCacheSize = 10000

// MemoryGate keeps a token bucket per origin in a bounded LRU cache. The
// bucket refills Limit tokens per Window, so the budget is a sliding
// approximation of the fixed window used by RedisGate.
type MemoryGate struct {
	policy Policy
	now    func() time.Time

	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
}

func NewMemoryGate(policy Policy, size int, now func() time.Time) (*MemoryGate, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	if now == nil {
		now = time.Now
	}
	cache, err := lru.New[string, *rate.Limiter](size)
	if err != nil {
		return nil, err
	}
	return &MemoryGate{policy: policy, now: now, limiters: cache}, nil
}

func (g *MemoryGate) Policy() Policy { return g.policy }

func (g *MemoryGate) limiter(key string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	if l, ok := g.limiters.Get(key); ok {
		return l
	}
	every := g.policy.Window / time.Duration(g.policy.Limit)
	l := rate.NewLimiter(rate.Every(every), g.policy.Limit)
	g.limiters.Add(key, l)
	return l
}

func (g *MemoryGate) deny(l *rate.Limiter, now time.Time) Decision {
	r := l.ReserveN(now, 1)
	wait := r.DelayFrom(now)
	r.CancelAt(now)
	return Decision{Allowed: false, RetryAfter: wait}
}

func remaining(tokens float64) int {
	if tokens < 0 {
		return 0
	}
	return int(math.Floor(tokens))
}

func (g *MemoryGate) Allow(ctx context.Context, key string) (Decision, error) {
	now := g.now()
	l := g.limiter(key)
	if !l.AllowN(now, 1) {
		return g.deny(l, now), nil
	}
	return Decision{Allowed: true, Remaining: remaining(l.TokensAt(now))}, nil
}

func (g *MemoryGate) Peek(ctx context.Context, key string) (Decision, error) {
	now := g.now()
	l := g.limiter(key)
	if l.TokensAt(now) < 1 {
		return g.deny(l, now), nil
	}
	return Decision{Allowed: true, Remaining: remaining(l.TokensAt(now))}, nil
}

func (g *MemoryGate) Record(ctx context.Context, key string) error {
	now := g.now()
	l := g.limiter(key)
	if l.TokensAt(now) >= 1 {
		l.AllowN(now, 1)
	}
	return nil
}
