package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jonny/interactiond/pkg/apierror"
)

const (
	evictInterval = 5 * time.Minute
	evictMaxAge   = 10 * time.Minute
	maxBuckets    = 10000
)

// tokenBucket is a per-client token bucket.
type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per nanosecond
	lastSeen   time.Time
}

func newTokenBucket(perMinute int, now time.Time) *tokenBucket {
	capacity := float64(perMinute)
	return &tokenBucket{
		tokens:     capacity,
		maxTokens:  capacity,
		refillRate: capacity / float64(time.Minute),
		lastSeen:   now,
	}
}

func (tb *tokenBucket) allow(now time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens += float64(now.Sub(tb.lastSeen)) * tb.refillRate
	if tb.tokens > tb.maxTokens {
		tb.tokens = tb.maxTokens
	}
	tb.lastSeen = now

	if tb.tokens < 1 {
		return false
	}
	tb.tokens--
	return true
}

// RateLimiter throttles inbound requests per client address. It guards the
// endpoint against floods of unsigned traffic; verified callbacks share the
// same budget.
type RateLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*tokenBucket
	perMinute  int
	trustProxy bool
	now        func() time.Time
}

// NewRateLimiter creates a limiter allowing perMinute requests per client.
// Stale buckets are evicted until ctx is cancelled.
func NewRateLimiter(ctx context.Context, perMinute int, trustProxy bool) *RateLimiter {
	rl := &RateLimiter{
		buckets:    make(map[string]*tokenBucket),
		perMinute:  perMinute,
		trustProxy: trustProxy,
		now:        time.Now,
	}
	go rl.evictionLoop(ctx)
	return rl
}

func (rl *RateLimiter) evictionLoop(ctx context.Context) {
	ticker := time.NewTicker(evictInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.evictStale(evictMaxAge)
		}
	}
}

func (rl *RateLimiter) evictStale(maxAge time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-maxAge)
	for ip, bucket := range rl.buckets {
		bucket.mu.Lock()
		stale := bucket.lastSeen.Before(cutoff)
		bucket.mu.Unlock()
		if stale {
			delete(rl.buckets, ip)
		}
	}
}

// Allow reports whether a request from ip may proceed. New clients are
// refused once maxBuckets are tracked.
func (rl *RateLimiter) Allow(ip string) bool {
	now := rl.now()

	rl.mu.Lock()
	bucket, ok := rl.buckets[ip]
	if !ok {
		if len(rl.buckets) >= maxBuckets {
			rl.mu.Unlock()
			return false
		}
		bucket = newTokenBucket(rl.perMinute, now)
		rl.buckets[ip] = bucket
	}
	rl.mu.Unlock()

	return bucket.allow(now)
}

// Middleware returns the limiter as HTTP middleware.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(remoteIP(r, rl.trustProxy)) {
			apierror.Write(w, apierror.New(http.StatusTooManyRequests, "Too many requests"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// remoteIP extracts the client IP from the request. X-Forwarded-For is only
// trusted behind a known reverse proxy.
func remoteIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if idx := strings.IndexByte(xff, ','); idx != -1 {
				return strings.TrimSpace(xff[:idx])
			}
			return strings.TrimSpace(xff)
		}
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndexByte(addr, ':'); idx != -1 {
		return addr[:idx]
	}
	return addr
}
