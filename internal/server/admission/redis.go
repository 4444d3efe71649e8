package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrBackendUnavailable wraps failures of the shared counter store.
var ErrBackendUnavailable = errors.New("admission backend unavailable")

// RedisGate shares fixed-window counters across server replicas. The window
// starts at the first hit for a key and lasts Policy.Window.
type RedisGate struct {
	client redis.UniversalClient
	policy Policy
	prefix string
}

func NewRedisGate(client redis.UniversalClient, policy Policy) *RedisGate {
	return &RedisGate{client: client, policy: policy, prefix: "taskmanager:admission:" + policy.Name + ":"}
}

func (g *RedisGate) Policy() Policy { return g.policy }

func (g *RedisGate) key(k string) string { return g.prefix + k }

func (g *RedisGate) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	count, err := g.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := g.client.Expire(ctx, key, g.policy.Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}

	return count, nil
}

func (g *RedisGate) retryAfter(ctx context.Context, key string) time.Duration {
	ttl, err := g.client.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		return g.policy.Window
	}
	return ttl
}

func (g *RedisGate) decide(ctx context.Context, key string, count int64, counted bool) Decision {
	limit := int64(g.policy.Limit)
	over := count >= limit
	if counted {
		over = count > limit
	}
	if over {
		return Decision{Allowed: false, RetryAfter: g.retryAfter(ctx, key)}
	}

	left := limit - count
	if left < 0 {
		left = 0
	}
	return Decision{Allowed: true, Remaining: int(left)}
}

func (g *RedisGate) Allow(ctx context.Context, key string) (Decision, error) {
	k := g.key(key)
	count, err := g.incrementWithTTL(ctx, k)
	if err != nil {
		return Decision{}, err
	}
	return g.decide(ctx, k, count, true), nil
}

func (g *RedisGate) Peek(ctx context.Context, key string) (Decision, error) {
	k := g.key(key)
	count, err := g.client.Get(ctx, k).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Decision{Allowed: true, Remaining: g.policy.Limit}, nil
		}
		return Decision{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return g.decide(ctx, k, count, false), nil
}

func (g *RedisGate) Record(ctx context.Context, key string) error {
	_, err := g.incrementWithTTL(ctx, g.key(key))
	return err
}
