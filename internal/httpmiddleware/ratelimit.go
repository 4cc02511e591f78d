package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// LimitMessage is the body of a throttled login attempt.
const LimitMessage = "Too many attempts. Try again shortly."

// LoginLimiter throttles login attempts per client address with a token
// bucket. Buckets that have refilled completely are forgotten on the next
// sweep, so the map only holds clients that were recently active.
type LoginLimiter struct {
	capacity  float64
	perSecond float64
	sweepEach time.Duration

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// NewLoginLimiter allows bursts of capacity attempts refilled at perMinute.
// A non-positive capacity means one minute's worth.
func NewLoginLimiter(capacity, perMinute int) *LoginLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	if capacity <= 0 {
		capacity = perMinute
	}
	return &LoginLimiter{
		capacity:  float64(capacity),
		perSecond: float64(perMinute) / 60,
		sweepEach: time.Minute,
		buckets:   make(map[string]*bucket),
		now:       time.Now,
	}
}

// Middleware rejects requests over the limit with 429.
func (l *LoginLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if key == "" {
			key = "unknown"
		}
		if !l.allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": LimitMessage})
			return
		}
		c.Next()
	}
}

func (l *LoginLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.capacity, seen: now}
		l.buckets[key] = b
	}
	b.tokens = l.refilled(b, now)
	b.seen = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (l *LoginLimiter) refilled(b *bucket, now time.Time) float64 {
	t := b.tokens + now.Sub(b.seen).Seconds()*l.perSecond
	return min(t, l.capacity)
}

func (l *LoginLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.sweepEach {
		return
	}
	l.lastSweep = now
	for key, b := range l.buckets {
		if l.refilled(b, now) >= l.capacity {
			delete(l.buckets, key)
		}
	}
}

// tracked reports how many clients currently hold a bucket.
func (l *LoginLimiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
