package httpx

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type RateLimiterConfig struct {
	Rate      rate.Limit
	Burst     int
	ExpiresIn time.Duration
}

// DefaultRateLimit allows one request per second per client with bursts of
// three; idle clients are forgotten after three minutes.
var DefaultRateLimit = RateLimiterConfig{Rate: rate.Limit(1), Burst: 3, ExpiresIn: 3 * time.Minute}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client identifier.
type RateLimiter struct {
	cfg      RateLimiterConfig
	mu       sync.Mutex
	visitors map[string]*visitor
	lastGC   time.Time
	now      func() time.Time
}

func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	return &RateLimiter{cfg: cfg, visitors: map[string]*visitor{}, now: time.Now}
}

// Allow reports whether id may make a request now.
func (l *RateLimiter) Allow(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastGC) > l.cfg.ExpiresIn {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > l.cfg.ExpiresIn {
				delete(l.visitors, k)
			}
		}
		l.lastGC = now
	}

	v, ok := l.visitors[id]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.cfg.Rate, l.cfg.Burst)}
		l.visitors[id] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Middleware limits by client IP.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorBody{Error: "rate_limited", Message: "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
