package ratelimit

import "context"

// RateLimiter controls message throughput per key (usually the transport name).
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Wait(ctx context.Context, key string) error
}

// Unlimited never throttles.
type Unlimited struct{}

func (Unlimited) Allow(ctx context.Context, key string) (bool, error) {
	return true, nil
}

func (Unlimited) Wait(ctx context.Context, key string) error {
	return ctx.Err()
}
