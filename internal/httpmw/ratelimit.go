// Package httpmw holds shared gin middleware: rate limiting, request
// logging, and security headers.
package httpmw

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces per-IP token-bucket rate limiting. One instance
// owns one visitor table and one sweep goroutine; Close stops the sweep.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int

	sweepEvery time.Duration
	staleAfter time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewRateLimiter creates a RateLimiter allowing rps steady-state
// requests per second per client IP with the given burst size. Visitor
// entries idle past twice the sweep interval are evicted.
func NewRateLimiter(rps, burst int, sweepEvery time.Duration) *RateLimiter {
	if sweepEvery <= 0 {
		sweepEvery = 5 * time.Minute
	}
	rl := &RateLimiter{
		visitors:   make(map[string]*visitor),
		rps:        rate.Limit(rps),
		burst:      burst,
		sweepEvery: sweepEvery,
		staleAfter: 2 * sweepEvery,
		stop:       make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Close stops the background sweep. Safe to call more than once.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Middleware returns the gin handler enforcing the limit.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	rl.mu.Unlock()

	return v.limiter.Allow()
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(rl.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if time.Since(v.lastSeen) > rl.staleAfter {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}
