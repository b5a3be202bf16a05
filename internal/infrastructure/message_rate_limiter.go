package infrastructure

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MessageRateLimiter keeps one token bucket per key (user id or chat id).
type MessageRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rate     rate.Limit
	burst    int
	idleTTL  time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMessageRateLimiter allows perSecond messages per key with the given burst.
// Buckets idle for longer than ten minutes are dropped by Cleanup.
func NewMessageRateLimiter(perSecond float64, burst int) *MessageRateLimiter {
	return &MessageRateLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Limit(perSecond),
		burst:    burst,
		idleTTL:  10 * time.Minute,
	}
}

func (rl *MessageRateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// Allow consumes one token for key if available.
func (rl *MessageRateLimiter) Allow(key string) bool {
	return rl.get(key).Allow()
}

// WaitTime reports how long key has to wait for its next token.
func (rl *MessageRateLimiter) WaitTime(key string) time.Duration {
	r := rl.get(key).Reserve()
	defer r.Cancel()
	return r.Delay()
}

func (rl *MessageRateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.limiters, key)
}

// Cleanup removes idle buckets every interval until ctx is done.
func (rl *MessageRateLimiter) Cleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.evictIdle(time.Now())
		}
	}
}

func (rl *MessageRateLimiter) evictIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) > rl.idleTTL {
			delete(rl.limiters, key)
		}
	}
}

func (rl *MessageRateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}
