// Package rate limita requests con ventana fija por clave.
package rate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	rdb "github.com/redis/go-redis/v9"
)

type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	WindowTTL   time.Duration
	CurrentHits int64
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

func result(hits, max int64, ttl, window time.Duration) Result {
	if ttl <= 0 {
		ttl = window
	}
	res := Result{
		Allowed:     hits <= max,
		Remaining:   max - hits,
		CurrentHits: hits,
		WindowTTL:   ttl,
	}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if !res.Allowed {
		res.RetryAfter = ttl
	}
	return res
}

// RedisLimiter: fixed window compartido entre procesos (INCR + EXPIRE).
type RedisLimiter struct {
	client rdb.UniversalClient
	prefix string
	max    int64
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(client rdb.UniversalClient, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{client: client, prefix: prefix, max: int64(max), window: window, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	winStart := l.now().UTC().Truncate(l.window)
	redisKey := fmt.Sprintf("%s%s:%d", l.prefix, strings.ReplaceAll(key, " ", "_"), winStart.Unix())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}

	// expiry en el primer hit
	remaining := ttl.Val()
	if incr.Val() == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return Result{}, err
		}
		remaining = l.window
	}
	return result(incr.Val(), l.max, remaining, l.window), nil
}

// MemoryLimiter es el fixed window de un solo proceso, sobre go-cache.
type MemoryLimiter struct {
	mu     sync.Mutex
	c      *gocache.Cache
	max    int64
	window time.Duration
	now    func() time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		c:      gocache.New(window, 2*window),
		max:    int64(max),
		window: window,
		now:    time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.now().UTC()
	winStart := now.Truncate(l.window)
	k := fmt.Sprintf("%s:%d", key, winStart.Unix())

	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.c.Add(k, int64(0), l.window)
	hits, err := l.c.IncrementInt64(k, 1)
	if err != nil {
		return Result{}, err
	}
	return result(hits, l.max, winStart.Add(l.window).Sub(now), l.window), nil
}
