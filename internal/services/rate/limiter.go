package rate

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const defaultWindow = 15 * time.Minute

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Limiter throttles callers per source address with fixed windows: a general
// quota for all API traffic and a much tighter quota for listing submissions,
// which fan out to the moderation oracle.
type Limiter struct {
	store      WindowStore
	window     time.Duration
	generalMax int
	createMax  int
}

func NewLimiter(store WindowStore, window time.Duration, generalMax, createMax int) *Limiter {
	if window <= 0 {
		window = defaultWindow
	}
	if generalMax < 0 {
		generalMax = 0
	}
	if createMax < 0 {
		createMax = 0
	}

	return &Limiter{
		store:      store,
		window:     window,
		generalMax: generalMax,
		createMax:  createMax,
	}
}

func (l *Limiter) AllowRequest(ctx context.Context, ip string) (int64, bool, error) {
	return l.allow(ctx, "rate:api:"+normalizeIP(ip), l.generalMax)
}

func (l *Limiter) AllowCreate(ctx context.Context, ip string) (int64, bool, error) {
	return l.allow(ctx, "rate:create:"+normalizeIP(ip), l.createMax)
}

func (l *Limiter) allow(ctx context.Context, key string, max int) (int64, bool, error) {
	if l.store == nil {
		return 0, false, fmt.Errorf("rate limiter store is nil")
	}
	if max <= 0 {
		return 0, true, nil
	}

	count, ttl, err := l.store.IncrementWindow(ctx, key, l.window)
	if err != nil {
		return 0, false, err
	}
	if count > int64(max) {
		return ceilSeconds(ttl), false, nil
	}

	return 0, true, nil
}

func normalizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return "unknown"
	}
	return ip
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 1
	}
	sec := int64(d / time.Second)
	if d%time.Second != 0 {
		sec++
	}
	if sec <= 0 {
		sec = 1
	}
	return sec
}
