package internalhttp

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithField("ip", c.ClientIP()).WithField("method", c.Request.Method).
			WithField("path", c.Request.URL.Path).WithField("status", c.Writer.Status()).
			WithField("user-agent", c.Request.Header.Get("user-agent")).
			WithField("latency", time.Since(start)).
			Info("http request processed")
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	visitors sync.Map
	rps      rate.Limit
	burst    int
}

// newRateLimiter applies a per-IP token bucket to every request.
func newRateLimiter(rps rate.Limit, burst int) gin.HandlerFunc {
	rl := &rateLimiter{rps: rps, burst: burst}
	go rl.cleanupLoop()
	return rl.handle
}

func (rl *rateLimiter) getVisitor(ip string) *rate.Limiter {
	val, ok := rl.visitors.Load(ip)
	if ok {
		v := val.(*visitor)
		v.lastSeen = time.Now()
		return v.limiter
	}

	limiter := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors.Store(ip, &visitor{limiter: limiter, lastSeen: time.Now()})
	return limiter
}

func (rl *rateLimiter) handle(c *gin.Context) {
	if !rl.getVisitor(c.ClientIP()).Allow() {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"message": "too many requests, please try again later",
		})
		return
	}
	c.Next()
}

func (rl *rateLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.visitors.Range(func(key, value any) bool {
			v := value.(*visitor)
			if time.Since(v.lastSeen) > 3*time.Minute {
				rl.visitors.Delete(key)
			}
			return true
		})
	}
}
