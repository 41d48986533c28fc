package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"

	"lms-ai-backend/internal/domain/model"
)

type miniClient struct {
	cli *goredis.Client
}

func (c *miniClient) Ping(ctx context.Context) error { return c.cli.Ping(ctx).Err() }
func (c *miniClient) Incr(ctx context.Context, key string) (int64, error) {
	return c.cli.Incr(ctx, key).Result()
}
func (c *miniClient) Expire(ctx context.Context, key string, d time.Duration) error {
	return c.cli.Expire(ctx, key, d).Err()
}
func (c *miniClient) TTL(ctx context.Context, key string) (time.Duration, error) {
	return c.cli.TTL(ctx, key).Result()
}
func (c *miniClient) Del(ctx context.Context, keys ...string) error {
	return c.cli.Del(ctx, keys...).Err()
}
func (c *miniClient) Close() error { return c.cli.Close() }

func newTestLimiter(t *testing.T) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cli := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cli.Close() })
	return NewRateLimiter(&miniClient{cli: cli}), mr
}

func TestAllowWithinQuota(t *testing.T) {
	rl, _ := newTestLimiter(t)
	ctx := context.Background()
	policy := model.RateLimitPolicy{Requests: 2, WindowHours: 10}
	key := model.ScopeKeyUserFamily(1, model.FamilyChat)

	for i := 0; i < 2; i++ {
		ok, err := rl.Allow(ctx, key, policy)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatalf("acquisition %d denied within quota", i+1)
		}
	}

	ok, err := rl.Allow(ctx, key, policy)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("third acquisition admitted over quota of 2")
	}
}

func TestWindowElapses(t *testing.T) {
	rl, mr := newTestLimiter(t)
	ctx := context.Background()
	policy := model.RateLimitPolicy{Requests: 1, WindowHours: 10}
	key := model.ScopeKeyUserFamily(2, model.FamilyChat)

	if ok, _ := rl.Allow(ctx, key, policy); !ok {
		t.Fatal("first acquisition denied")
	}
	if ok, _ := rl.Allow(ctx, key, policy); ok {
		t.Fatal("second acquisition admitted before window elapsed")
	}

	mr.FastForward(10*time.Hour + time.Minute)

	if ok, _ := rl.Allow(ctx, key, policy); !ok {
		t.Fatal("acquisition denied after window elapsed")
	}
}

func TestZeroMeansUnlimited(t *testing.T) {
	rl, mr := newTestLimiter(t)
	ctx := context.Background()
	key := model.ScopeKeyUserFamily(3, model.FamilyChat)

	for _, policy := range []model.RateLimitPolicy{
		{Requests: 0, WindowHours: 10},
		{Requests: 5, WindowHours: 0},
		{},
	} {
		for i := 0; i < 10; i++ {
			ok, err := rl.Allow(ctx, key, policy)
			if err != nil {
				t.Fatal(err)
			}
			if !ok {
				t.Fatalf("unlimited policy %+v denied", policy)
			}
		}
	}
	// Unlimited checks must not write counters.
	if mr.Exists(key) {
		t.Fatal("unlimited policy touched the counter")
	}
}

func TestResetTakesEffectImmediately(t *testing.T) {
	rl, _ := newTestLimiter(t)
	ctx := context.Background()
	policy := model.RateLimitPolicy{Requests: 1, WindowHours: 10}
	key := model.ScopeKeyUserCourse(4, 99)

	if ok, _ := rl.Allow(ctx, key, policy); !ok {
		t.Fatal("first acquisition denied")
	}
	if ok, _ := rl.Allow(ctx, key, policy); ok {
		t.Fatal("over-quota acquisition admitted")
	}

	if err := rl.Reset(ctx, key); err != nil {
		t.Fatal(err)
	}
	if ok, _ := rl.Allow(ctx, key, policy); !ok {
		t.Fatal("acquisition denied after reset")
	}
}
