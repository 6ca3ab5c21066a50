package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/smallbiznis/guildgate/internal/config"
)

const idleClientWindow = 5 * time.Minute

// RateLimiter enforces per-client throttling with one token bucket per key.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	keyFn   func(*gin.Context) string
	now     func() time.Time
	mu      sync.Mutex
	clients map[string]*clientLimiter
	swept   time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter for the configured requests-per-minute
// budget. It returns nil, which lets every request through, when the budget is
// not positive.
func NewRateLimiter(cfg config.Config) *RateLimiter {
	return newRateLimiter(cfg.RateLimitRPM, time.Now)
}

func newRateLimiter(requestsPerMinute int, now func() time.Time) *RateLimiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:   rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:   burst,
		keyFn:   func(c *gin.Context) string { return c.ClientIP() },
		now:     now,
		clients: make(map[string]*clientLimiter),
	}
}

// Handler returns the gin middleware enforcing throttling behaviour.
func (r *RateLimiter) Handler() gin.HandlerFunc {
	if r == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		now := r.now()
		limiter := r.getLimiter(r.keyFn(c), now)
		if !limiter.AllowN(now, 1) {
			wait := time.Duration(float64(time.Second) / float64(r.limit))
			c.Header("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
			return
		}
		c.Next()
	}
}

func (r *RateLimiter) getLimiter(key string, now time.Time) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if now.Sub(r.swept) > idleClientWindow {
		r.sweepLocked(now)
	}
	if entry, ok := r.clients[key]; ok {
		entry.lastSeen = now
		return entry.limiter
	}
	limiter := rate.NewLimiter(r.limit, r.burst)
	r.clients[key] = &clientLimiter{limiter: limiter, lastSeen: now}
	return limiter
}

func (r *RateLimiter) sweepLocked(now time.Time) {
	for key, entry := range r.clients {
		if now.Sub(entry.lastSeen) > idleClientWindow {
			delete(r.clients, key)
		}
	}
	r.swept = now
}
