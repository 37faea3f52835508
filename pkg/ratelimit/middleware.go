package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"pizzastream/internal/config"
	apperrors "pizzastream/pkg/errors"
	"pizzastream/pkg/metrics"
)

type client struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	lastSeen time.Time
}

// allow reports whether the client may proceed and how many tokens remain.
func (c *client) allow(now time.Time) (bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeen = now
	ok := c.limiter.AllowN(now, 1)
	return ok, max(int(c.limiter.TokensAt(now)), 0)
}

func (c *client) idleSince(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.Sub(c.lastSeen)
}

// clients holds one token bucket per client IP.
type clients struct {
	mu    sync.RWMutex
	byIP  map[string]*client
	limit rate.Limit
	burst int
}

func newClients(cfg RateLimitConfig) *clients {
	return &clients{
		byIP:  make(map[string]*client),
		limit: rate.Limit(cfg.RPS),
		burst: cfg.Burst,
	}
}

func (cs *clients) get(ip string) *client {
	cs.mu.RLock()
	c, ok := cs.byIP[ip]
	cs.mu.RUnlock()
	if ok {
		return c
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	if c, ok = cs.byIP[ip]; !ok {
		c = &client{limiter: rate.NewLimiter(cs.limit, cs.burst)}
		cs.byIP[ip] = c
	}
	return c
}

// sweep drops clients idle for longer than maxAge.
func (cs *clients) sweep(now time.Time, maxAge time.Duration) int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	dropped := 0
	for ip, c := range cs.byIP {
		if c.idleSince(now) > maxAge {
			delete(cs.byIP, ip)
			dropped++
		}
	}
	return dropped
}

type RateLimitConfig struct {
	RPS             float64
	Burst           int
	CleanupInterval time.Duration
	MaxAge          time.Duration
}

func DefaultConfig() RateLimitConfig {
	return RateLimitConfig{
		RPS:             10.0,
		Burst:           20,
		CleanupInterval: 5 * time.Minute,
		MaxAge:          10 * time.Minute,
	}
}

// FromConfig fills unset fields from DefaultConfig. Intervals in cfg are
// seconds.
func FromConfig(cfg config.RateLimitConfig) RateLimitConfig {
	out := DefaultConfig()
	if cfg.RPS > 0 {
		out.RPS = cfg.RPS
	}
	if cfg.Burst > 0 {
		out.Burst = cfg.Burst
	}
	if cfg.CleanupInterval > 0 {
		out.CleanupInterval = time.Duration(cfg.CleanupInterval) * time.Second
	}
	if cfg.MaxAge > 0 {
		out.MaxAge = time.Duration(cfg.MaxAge) * time.Second
	}
	return out
}

// RateLimitMiddleware limits requests per client IP. Idle clients are
// swept until ctx is done.
func RateLimitMiddleware(ctx context.Context, cfg RateLimitConfig) gin.HandlerFunc {
	cs := newClients(cfg)

	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				cs.sweep(now, cfg.MaxAge)
			}
		}
	}()

	limitHeader := strconv.FormatFloat(cfg.RPS, 'f', -1, 64)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = c.RemoteIP()
		}

		c.Header("X-RateLimit-Limit", limitHeader)

		ok, remaining := cs.get(ip).allow(time.Now())
		if !ok {
			metrics.RateLimitRequestsTotal.WithLabelValues("limited").Inc()
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apperrors.ToErrorResponse(apperrors.ErrRateLimited))
			return
		}

		metrics.RateLimitRequestsTotal.WithLabelValues("allowed").Inc()
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Next()
	}
}
