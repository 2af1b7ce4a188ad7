package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	redrepo "github.com/pkoziel/ogloszybko/internal/repo/redis"
)

func newMiniRedisClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	return mr, goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
}

func TestLimiterBlocksCreateOverQuota(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	repo := redrepo.NewRateRepo(client)
	limiter := NewLimiter(repo, 15*time.Minute, 100, 2)

	ctx := context.Background()
	ip := "203.0.113.7"

	for i := 0; i < 2; i++ {
		retryAfter, allowed, err := limiter.AllowCreate(ctx, ip)
		if err != nil {
			t.Fatalf("allow create #%d: %v", i+1, err)
		}
		if !allowed || retryAfter != 0 {
			t.Fatalf("unexpected result on create #%d: allowed=%v retry_after=%d", i+1, allowed, retryAfter)
		}
	}

	retryAfter, allowed, err := limiter.AllowCreate(ctx, ip)
	if err != nil {
		t.Fatalf("allow create #3: %v", err)
	}
	if allowed {
		t.Fatalf("expected limiter block on third create in window")
	}
	if retryAfter <= 0 {
		t.Fatalf("expected positive retry_after, got %d", retryAfter)
	}

	mr.FastForward(16 * time.Minute)

	retryAfter, allowed, err = limiter.AllowCreate(ctx, ip)
	if err != nil {
		t.Fatalf("allow create after window: %v", err)
	}
	if !allowed || retryAfter != 0 {
		t.Fatalf("unexpected result after fast forward: allowed=%v retry_after=%d", allowed, retryAfter)
	}
}

func TestLimiterTracksIPsIndependently(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	repo := redrepo.NewRateRepo(client)
	limiter := NewLimiter(repo, time.Minute, 1, 1)

	ctx := context.Background()

	if _, allowed, err := limiter.AllowRequest(ctx, "203.0.113.1"); err != nil || !allowed {
		t.Fatalf("first ip should be allowed: allowed=%v err=%v", allowed, err)
	}
	if _, allowed, err := limiter.AllowRequest(ctx, "203.0.113.1"); err != nil || allowed {
		t.Fatalf("first ip should now be blocked: allowed=%v err=%v", allowed, err)
	}
	if _, allowed, err := limiter.AllowRequest(ctx, "203.0.113.2"); err != nil || !allowed {
		t.Fatalf("second ip should be unaffected: allowed=%v err=%v", allowed, err)
	}
}

func TestLimiterZeroQuotaDisablesCheck(t *testing.T) {
	limiter := NewLimiter(nil, time.Minute, 0, 0)

	if _, allowed, err := limiter.AllowRequest(context.Background(), "203.0.113.1"); err != nil || !allowed {
		t.Fatalf("zero quota must disable the limiter: allowed=%v err=%v", allowed, err)
	}
}
