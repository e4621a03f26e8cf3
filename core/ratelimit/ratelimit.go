// Package ratelimit provides a per-key token bucket used to shield the
// webhook routes from a single chatty sender.
package ratelimit

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const sweepEvery = 256

// KeyLimiter keeps one token bucket per sender key. Idle buckets are swept
// out lazily so the map does not grow with every respondent ever seen.
type KeyLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
	calls   uint64
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// New returns a limiter allowing rps sustained requests per key with the
// given burst. Non-positive rps or burst disables limiting (nil limiter).
func New(rps float64, burst int, idleTTL time.Duration) *KeyLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 15 * time.Minute
	}
	return &KeyLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		buckets: make(map[string]*bucket),
	}
}

// Allow reports whether the key may proceed now. A nil limiter and an empty
// key always pass.
func (l *KeyLimiter) Allow(key string) bool {
	return l.allowAt(key, time.Now())
}

func (l *KeyLimiter) allowAt(key string, now time.Time) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	l.calls++
	if l.calls%sweepEvery == 0 {
		l.sweepLocked(now)
	}

	return b.lim.AllowN(now, 1)
}

func (l *KeyLimiter) sweepLocked(now time.Time) {
	cutoff := now.Add(-l.idleTTL)
	for k, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, k)
		}
	}
}
