// Package ratelimit 提供按 key 区分的令牌桶限流器
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter defines the interface for rate limiting
type RateLimiter interface {
	// Allow checks if the request is allowed for the given key and limit
	Allow(ctx context.Context, key string, limit Limit) (*Result, error)
}

// Limit defines the rate limit rule
type Limit struct {
	Rate   int
	Period time.Duration
	Burst  int
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// LocalRateLimiter 进程内限流器，每个 key 一个令牌桶
type LocalRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	maxKeys  int
}

// NewLocalRateLimiter 创建进程内限流器。maxKeys 达到上限时清空重建，避免客户端地址无限增长。
func NewLocalRateLimiter(maxKeys int) *LocalRateLimiter {
	if maxKeys <= 0 {
		maxKeys = 10000
	}
	return &LocalRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		maxKeys:  maxKeys,
	}
}

// Allow checks if the request is allowed
func (l *LocalRateLimiter) Allow(_ context.Context, key string, limit Limit) (*Result, error) {
	limiter := l.limiterFor(key, limit)

	now := time.Now()
	reservation := limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return &Result{Allowed: false}, nil
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return &Result{Allowed: false, RetryAfter: delay}, nil
	}

	return &Result{
		Allowed:   true,
		Remaining: int(limiter.TokensAt(now)),
	}, nil
}

func (l *LocalRateLimiter) limiterFor(key string, limit Limit) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, ok := l.limiters[key]; ok {
		return limiter
	}
	if len(l.limiters) >= l.maxKeys {
		l.limiters = make(map[string]*rate.Limiter)
	}

	period := limit.Period
	if period <= 0 {
		period = time.Second
	}
	every := rate.Every(period / time.Duration(max(limit.Rate, 1)))
	limiter := rate.NewLimiter(every, max(limit.Burst, 1))
	l.limiters[key] = limiter
	return limiter
}
