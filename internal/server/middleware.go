package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"banter/internal/config"
	"banter/internal/logging"
)

// requestLog logs each request through the server category.
func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.ServerDebug("%s %s -> %d in %v",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// rateLimit applies a per-client token bucket keyed by remote IP. A
// non-positive rate disables limiting.
func rateLimit(cfg config.ServerConfig) gin.HandlerFunc {
	if cfg.RatePerSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}

	var mu sync.Mutex
	buckets := make(map[string]*rate.Limiter)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		mu.Lock()
		lim, found := buckets[ip]
		if !found {
			lim = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
			buckets[ip] = lim
		}
		mu.Unlock()

		if !lim.Allow() {
			fail(c, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			c.Abort()
			return
		}
		c.Next()
	}
}
