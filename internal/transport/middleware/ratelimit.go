package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/frahmantamala/survey-management/internal"
	"github.com/frahmantamala/survey-management/internal/transport"
	"golang.org/x/time/rate"
)

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter is a token bucket per client address.
type RateLimiter struct {
	limit rate.Limit
	burst int
	ttl   time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
}

func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   burst,
		ttl:     10 * time.Minute,
		buckets: make(map[string]*bucket),
	}
}

func (l *RateLimiter) Allow(key string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// Sweep drops buckets idle for longer than the TTL.
func (l *RateLimiter) Sweep() {
	cutoff := time.Now().Add(-l.ttl)

	l.mu.Lock()
	defer l.mu.Unlock()
	for k, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, k)
		}
	}
}

// SweepEvery runs Sweep on a ticker until ctx is done.
func (l *RateLimiter) SweepEvery(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.Sweep()
		}
	}
}

func (l *RateLimiter) Middleware(base *transport.BaseHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := internal.RequestSourceFromContext(r.Context()).Address
			if key == "" {
				key = clientAddress(r)
			}
			if !l.Allow(key) {
				w.Header().Set("Retry-After", "60")
				base.HandleServiceError(w, r, internal.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
