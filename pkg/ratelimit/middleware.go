package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"lyftr/pkg/errors"
	"lyftr/pkg/metrics"
)

type Limiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	mu       sync.Mutex
}

type RateLimitConfig struct {
	RPS             float64
	Burst           int
	CleanupInterval time.Duration
	MaxAge          time.Duration
	// OnLimited, when set, runs for each rejected request before the 429 is written.
	OnLimited func(c *gin.Context)
}

func DefaultConfig() RateLimitConfig {
	return RateLimitConfig{
		RPS:             50.0,
		Burst:           100,
		CleanupInterval: 5 * time.Minute,
		MaxAge:          10 * time.Minute,
	}
}

// clientLimiters keeps one token bucket per client IP.
type clientLimiters struct {
	config   RateLimitConfig
	limiters map[string]*Limiter
	mu       sync.RWMutex
}

func newClientLimiters(config RateLimitConfig) *clientLimiters {
	return &clientLimiters{
		config:   config,
		limiters: make(map[string]*Limiter),
	}
}

func (l *clientLimiters) get(clientIP string) *Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[clientIP]
	l.mu.RUnlock()

	if !exists {
		l.mu.Lock()
		limiter, exists = l.limiters[clientIP]
		if !exists {
			limiter = &Limiter{
				limiter:  rate.NewLimiter(rate.Limit(l.config.RPS), l.config.Burst),
				lastSeen: time.Now(),
			}
			l.limiters[clientIP] = limiter
		}
		l.mu.Unlock()
	}

	limiter.mu.Lock()
	limiter.lastSeen = time.Now()
	limiter.mu.Unlock()

	return limiter
}

func (l *clientLimiters) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, limiter := range l.limiters {
		limiter.mu.Lock()
		lastSeen := limiter.lastSeen
		limiter.mu.Unlock()
		if now.Sub(lastSeen) > l.config.MaxAge {
			delete(l.limiters, ip)
		}
	}
}

func (l *clientLimiters) cleanup(ctx context.Context) {
	if l.config.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.evict(now)
		}
	}
}

// RateLimitMiddleware rejects clients exceeding their per-IP budget with 429.
// The eviction goroutine stops when ctx is cancelled.
func RateLimitMiddleware(ctx context.Context, config RateLimitConfig, m *metrics.Metrics) gin.HandlerFunc {
	limiters := newClientLimiters(config)
	go limiters.cleanup(ctx)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if clientIP == "" {
			clientIP = c.RemoteIP()
		}

		limiter := limiters.get(clientIP)

		if !limiter.limiter.Allow() {
			m.IncRateLimitRequest("limited")
			if config.OnLimited != nil {
				config.OnLimited(c)
			}
			c.Header("X-RateLimit-Limit", formatRate(config.RPS))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(errors.ErrTooManyRequests.Status, errors.ToErrorResponse(errors.ErrTooManyRequests))
			return
		}

		m.IncRateLimitRequest("allowed")

		c.Header("X-RateLimit-Limit", formatRate(config.RPS))
		remaining := int(limiter.limiter.Tokens())
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		c.Next()
	}
}

func formatRate(rps float64) string {
	return strconv.FormatFloat(rps, 'f', -1, 64)
}
