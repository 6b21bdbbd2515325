package middleware

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/almazaya/travel-backend/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long an IP's bucket is kept after its last request
const limiterIdleTTL = 30 * time.Minute

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// IPRateLimiter throttles public booking and payment endpoints per client IP
type IPRateLimiter struct {
	rps      rate.Limit
	burst    int
	limiters sync.Map // map[string]*ipLimiter
	logger   *logrus.Logger
	now      func() time.Time
}

// NewIPRateLimiter creates a limiter allowing rps sustained requests with the given burst
func NewIPRateLimiter(rps float64, burst int, logger *logrus.Logger) *IPRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &IPRateLimiter{
		rps:    rate.Limit(rps),
		burst:  burst,
		logger: logger,
		now:    time.Now,
	}
}

// Allow consumes a token from the IP's bucket
func (l *IPRateLimiter) Allow(ip string) bool {
	v, ok := l.limiters.Load(ip)
	if !ok {
		v, _ = l.limiters.LoadOrStore(ip, &ipLimiter{limiter: rate.NewLimiter(l.rps, l.burst)})
	}
	entry := v.(*ipLimiter)
	entry.lastSeen.Store(l.now().UnixNano())
	return entry.limiter.Allow()
}

// Cleanup drops buckets idle for longer than limiterIdleTTL and returns how many were removed
func (l *IPRateLimiter) Cleanup() int {
	cutoff := l.now().Add(-limiterIdleTTL).UnixNano()
	removed := 0
	l.limiters.Range(func(key, val any) bool {
		if val.(*ipLimiter).lastSeen.Load() < cutoff {
			l.limiters.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

// StartCleanup runs Cleanup every interval until ctx is done
func (l *IPRateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := l.Cleanup(); removed > 0 {
					l.logger.WithField("removed", removed).Debug("Rate limiter buckets cleaned up")
				}
			}
		}
	}()
}

// Middleware rejects requests over the limit with 429
func (l *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := utils.GetRealIP(c)
		if !l.Allow(ip) {
			l.logger.WithFields(logrus.Fields{
				"ip":         ip,
				"path":       c.Request.URL.Path,
				"request_id": GetRequestID(c),
			}).Warn("Rate limit exceeded")
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limited",
				"message": "Too many requests. Please try again shortly.",
				"code":    "RATE_LIMIT_EXCEEDED",
			})
			return
		}
		c.Next()
	}
}
