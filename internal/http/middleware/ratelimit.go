package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc maps a request to its bucket and reports the method class used
// for the rate_limited metric.
type keyFunc func(*gin.Context) (key, class string)

// KeyByClient gives every client one bucket for all methods.
func KeyByClient() keyFunc {
	return func(c *gin.Context) (string, string) {
		return "ip:" + ClientID(c), "all"
	}
}

// KeyByClientAndMethodClass splits each client's budget into a read bucket
// and a write bucket so that bursts of likes and clicks do not starve page
// loads.
func KeyByClientAndMethodClass() keyFunc {
	return func(c *gin.Context) (string, string) {
		class := methodClass(c.Request.Method)
		return "ip:" + ClientID(c) + ":" + class, class
	}
}

func methodClass(m string) string {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return "read"
	}
	return "write"
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter is a process-local token-bucket limiter with one bucket per
// key. Buckets idle for longer than the idle window are swept at most once
// per window. Safe for concurrent use.
type RateLimiter struct {
	limit rate.Limit
	burst int
	keyFn keyFunc
	idle  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// NewRateLimiter allows rps requests per second with bursts of burst (at
// least 1) per key.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		keyFn:   keyFn,
		idle:    10 * time.Minute,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (rl *RateLimiter) bucketFor(key string) *rate.Limiter {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= rl.idle {
		for k, b := range rl.buckets {
			if now.Sub(b.seen) >= rl.idle {
				delete(rl.buckets, k)
			}
		}
		rl.lastSweep = now
	}
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.seen = now
	return b.lim
}

// size is the number of live buckets.
func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// IsRateBypass reports whether IdempotencyValidator exempted this request
// from limiting because it replays a completed operation.
func IsRateBypass(c *gin.Context) bool { return flag(c, ctxKeyRateBypass) }

// Handler rejects over-budget requests with 429 and a Retry-After equal to
// the whole seconds until the bucket holds a token again.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}
		key, class := rl.keyFn(c)
		now := rl.now()
		res := rl.bucketFor(key).ReserveN(now, 1)
		delay := time.Duration(0)
		if res.OK() {
			delay = res.DelayFrom(now)
		}
		if res.OK() && delay == 0 {
			c.Next()
			return
		}
		res.CancelAt(now)

		retry := 1
		if delay > 0 {
			retry = int(math.Ceil(delay.Seconds()))
		}
		rateLimited.WithLabelValues(class).Inc()
		c.Header("Retry-After", strconv.Itoa(retry))
		abort(c, http.StatusTooManyRequests, codeRateLimited, "rate limit exceeded")
	}
}
