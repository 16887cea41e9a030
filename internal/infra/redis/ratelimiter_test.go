package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func TestRedisRateLimiterAllow(t *testing.T) {
	t.Parallel()

	rdb, _ := newTestRedisClient(t)

	now := time.Unix(1_700_000_040, 0)
	limiter, err := newRedisRateLimiter(
		rdb,
		2,
		time.Minute,
		func() time.Time { return now },
		sleepWithContext,
	)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(context.Background(), "browser")
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !allowed {
			t.Fatalf("call %d should be allowed", i+1)
		}
	}

	allowed, err := limiter.Allow(context.Background(), "browser")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if allowed {
		t.Fatal("third call should be rejected by rate limit")
	}

	// Same window: still rejected.
	now = now.Add(10 * time.Second)
	allowed, err = limiter.Allow(context.Background(), "browser")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if allowed {
		t.Fatal("call later in the same window should be rejected")
	}

	now = now.Add(time.Minute)
	allowed, err = limiter.Allow(context.Background(), "browser")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Fatal("new window should allow call")
	}
}

func TestRedisRateLimiterAllowPerKey(t *testing.T) {
	t.Parallel()

	rdb, _ := newTestRedisClient(t)

	now := time.Unix(1_700_000_100, 0)
	limiter, err := newRedisRateLimiter(
		rdb,
		1,
		time.Minute,
		func() time.Time { return now },
		sleepWithContext,
	)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	allowed, err := limiter.Allow(context.Background(), "browser")
	if err != nil {
		t.Fatalf("Allow(browser) error = %v", err)
	}
	if !allowed {
		t.Fatal("browser should be allowed on first request")
	}

	allowed, err = limiter.Allow(context.Background(), "webhook")
	if err != nil {
		t.Fatalf("Allow(webhook) error = %v", err)
	}
	if !allowed {
		t.Fatal("webhook should be allowed on first request")
	}

	allowed, err = limiter.Allow(context.Background(), "BROWSER")
	if err != nil {
		t.Fatalf("Allow(BROWSER) error = %v", err)
	}
	if allowed {
		t.Fatal("browser second request should be rejected")
	}
}

func TestRedisRateLimiterSetsWindowExpiry(t *testing.T) {
	t.Parallel()

	rdb, mr := newTestRedisClient(t)

	now := time.Unix(1_700_000_160, 0)
	limiter, err := newRedisRateLimiter(rdb, 5, time.Minute, func() time.Time { return now }, sleepWithContext)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	if _, err := limiter.Allow(context.Background(), "browser"); err != nil {
		t.Fatalf("Allow() error = %v", err)
	}

	key := "ratelimit:browser:28333336"
	if !mr.Exists(key) {
		t.Fatalf("expected key %q, have %v", key, mr.Keys())
	}
	if ttl := mr.TTL(key); ttl != time.Minute {
		t.Fatalf("TTL(%q) = %v, want %v", key, ttl, time.Minute)
	}
}

func TestRedisRateLimiterWait(t *testing.T) {
	t.Parallel()

	rdb, _ := newTestRedisClient(t)

	now := time.Unix(1_700_000_200, 0)
	var slept []time.Duration
	limiter, err := newRedisRateLimiter(
		rdb,
		1,
		time.Minute,
		func() time.Time { return now },
		func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			now = now.Add(d)
			return nil
		},
	)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	allowed, err := limiter.Allow(context.Background(), "browser")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Fatal("expected first call to be allowed")
	}

	if err := limiter.Wait(context.Background(), "browser"); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if len(slept) != 1 {
		t.Fatalf("Wait() slept %d times, want 1", len(slept))
	}
	// 1_700_000_200 is 40s into its minute.
	if slept[0] != 20*time.Second {
		t.Fatalf("Wait() slept %v, want %v", slept[0], 20*time.Second)
	}
}

func TestRedisRateLimiterWaitContextDeadline(t *testing.T) {
	t.Parallel()

	rdb, _ := newTestRedisClient(t)

	now := time.Unix(1_700_000_300, 0)
	limiter, err := newRedisRateLimiter(
		rdb,
		1,
		time.Minute,
		func() time.Time { return now },
		sleepWithContext,
	)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	allowed, err := limiter.Allow(context.Background(), "browser")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Fatal("expected first call to be allowed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	err = limiter.Wait(ctx, "browser")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait() error = %v, want %v", err, context.DeadlineExceeded)
	}
}

func newTestRedisClient(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = rdb.Close()
	})

	return rdb, mr
}
