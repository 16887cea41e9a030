package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var _ RateLimiter = (*LocalRateLimiter)(nil)

// LocalRateLimiter is an in-process token bucket per key. It is used when no
// shared Redis limiter is configured.
type LocalRateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func NewLocalRateLimiter(perMinute int) (*LocalRateLimiter, error) {
	if perMinute <= 0 {
		return nil, fmt.Errorf("rate limit per minute must be positive")
	}

	return &LocalRateLimiter{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    1,
		limiters: make(map[string]*rate.Limiter),
	}, nil
}

func (l *LocalRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	limiter, err := l.forKey(key)
	if err != nil {
		return false, err
	}
	return limiter.Allow(), nil
}

func (l *LocalRateLimiter) Wait(ctx context.Context, key string) error {
	limiter, err := l.forKey(key)
	if err != nil {
		return err
	}
	return limiter.Wait(ctx)
}

func (l *LocalRateLimiter) forKey(key string) (*rate.Limiter, error) {
	if l == nil {
		return nil, fmt.Errorf("rate limiter is not initialized")
	}

	normalized := strings.ToLower(strings.TrimSpace(key))
	if normalized == "" {
		return nil, fmt.Errorf("rate limit key is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[normalized]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[normalized] = limiter
	}
	return limiter, nil
}
