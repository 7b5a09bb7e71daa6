package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Actions with their own budget. Anything else falls back to the default.
const (
	ActionMessage = "message"
	ActionTyping  = "typing"
	ActionHTTP    = "http"
)

const idleBucketTTL = time.Hour

type Limit struct {
	Every time.Duration
	Burst int
}

// DefaultLimits: 10 messages then one every 6s, 30 typing events then one
// every 2s, 20 API calls then one every 3s.
var DefaultLimits = map[string]Limit{
	ActionMessage: {Every: 6 * time.Second, Burst: 10},
	ActionTyping:  {Every: 2 * time.Second, Burst: 30},
	ActionHTTP:    {Every: 3 * time.Second, Burst: 20},
}

var fallbackLimit = Limit{Every: 3 * time.Second, Burst: 20}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per (key, action).
type RateLimiter struct {
	limits  map[string]Limit
	buckets map[string]*bucket
	mutex   sync.Mutex
	now     func() time.Time
}

func NewRateLimiter(limits map[string]Limit) *RateLimiter {
	if limits == nil {
		limits = DefaultLimits
	}
	return &RateLimiter{
		limits:  limits,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow consumes a token for key's action. When denied it returns how long
// until the next token is available.
func (rl *RateLimiter) Allow(key, action string) (bool, time.Duration) {
	now := rl.now()
	b := rl.bucketFor(key, action, now)

	reservation := b.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, 0
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (rl *RateLimiter) bucketFor(key, action string, now time.Time) *bucket {
	id := key + ":" + action

	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	b, ok := rl.buckets[id]
	if !ok {
		limit, known := rl.limits[action]
		if !known {
			limit = fallbackLimit
		}
		b = &bucket{limiter: rate.NewLimiter(rate.Every(limit.Every), limit.Burst)}
		rl.buckets[id] = b
	}
	b.lastSeen = now
	return b
}

// Cleanup drops buckets idle for longer than an hour.
func (rl *RateLimiter) Cleanup() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	cutoff := rl.now().Add(-idleBucketTTL)
	removed := 0
	for id, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, id)
			removed++
		}
	}
	return removed
}

// StartCleanupRoutine runs Cleanup every interval until ctx is cancelled.
func (rl *RateLimiter) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}
