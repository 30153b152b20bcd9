// Package ratelimit throttles API callers with one token bucket per client.
// Authenticated requests are keyed by user id, anonymous ones by client IP.
package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	dErrors "tradeledger/pkg/domain-errors"
	"tradeledger/pkg/platform/httputil"
	"tradeledger/pkg/requestcontext"
)

const defaultIdleTTL = 10 * time.Minute

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter holds the per-client buckets. Buckets unused for longer than the
// idle TTL are evicted lazily.
type Limiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	clients   map[string]*client
	lastSweep time.Time
}

type Option func(*Limiter)

// WithIdleTTL sets how long an unused bucket is kept.
func WithIdleTTL(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.idle = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New allows rps requests per second per client with the given burst.
func New(rps float64, burst int, opts ...Option) *Limiter {
	l := &Limiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idle:    defaultIdleTTL,
		now:     time.Now,
		clients: make(map[string]*client),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastSweep = l.now()
	return l
}

// Allow consumes one token for key. When the bucket is empty it returns false
// and how long the caller should wait.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now

	res := c.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, l.idle
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Len reports the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idle {
		return
	}
	for key, c := range l.clients {
		if now.Sub(c.lastSeen) >= l.idle {
			delete(l.clients, key)
		}
	}
	l.lastSweep = now
}

// Middleware rejects over-limit requests with 429 and a Retry-After header.
// It must run after authentication so callers are keyed by user id.
func (l *Limiter) Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := "ip:" + requestcontext.ClientIP(ctx)
			if userID := requestcontext.UserID(ctx); !userID.IsNil() {
				key = "user:" + userID.String()
			}

			ok, wait := l.Allow(key)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.burst))
			if !ok {
				logger.WarnContext(ctx, "rate limit exceeded",
					"request_id", requestcontext.RequestID(ctx),
					"client", key,
				)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
