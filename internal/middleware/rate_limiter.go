package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimiter is the single-instance limiter: one token bucket per
// client IP, held in process memory.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	var visitors = make(map[string]*rate.Limiter)
	var mu sync.Mutex

	getVisitor := func(ip string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		limiter, exists := visitors[ip]
		if !exists {
			limiter = rate.NewLimiter(r, b)
			visitors[ip] = limiter
		}
		return limiter
	}

	return func(c *gin.Context) {
		ip := c.ClientIP()
		limiter := getVisitor(ip)
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// DistributedRateLimiter enforces a sliding-window limit in Redis so
// multiple API instances share one budget per client.
type DistributedRateLimiter struct {
	redis *redis.Client
}

type RateLimit struct {
	Rate    int
	Window  time.Duration
	KeyFunc func(*gin.Context) string
}

func NewDistributedRateLimiter(redisClient *redis.Client) *DistributedRateLimiter {
	return &DistributedRateLimiter{redis: redisClient}
}

func (rl *DistributedRateLimiter) Middleware(name string, limit RateLimit) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("rate_limit:%s:%s", name, limit.KeyFunc(c))

		allowed, err := rl.checkLimit(c.Request.Context(), key, limit)
		if err != nil {
			// Redis trouble must not take the API down with it.
			c.Header("X-RateLimit-Error", "true")
			c.Next()
			return
		}

		if !allowed {
			c.Header("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
			c.Header("X-RateLimit-Window", limit.Window.String())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": limit.Window.Seconds(),
			})
			return
		}

		c.Next()
	}
}

func (rl *DistributedRateLimiter) checkLimit(ctx context.Context, key string, limit RateLimit) (bool, error) {
	now := time.Now().UnixNano()
	windowStart := now - limit.Window.Nanoseconds()

	pipe := rl.redis.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: now})
	pipe.Expire(ctx, key, limit.Window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to execute rate limit pipeline: %w", err)
	}

	return countCmd.Val() < int64(limit.Rate), nil
}

func IPKeyFunc(c *gin.Context) string {
	return c.ClientIP()
}

// UserKeyFunc buckets by authenticated caller, falling back to the
// client IP for anonymous requests.
func UserKeyFunc(c *gin.Context) string {
	if id := CallerID(c); id != 0 {
		return fmt.Sprintf("user:%d", id)
	}
	return c.ClientIP()
}
