package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/telekom/props-override/pkg/apiresponses"
	"github.com/telekom/props-override/pkg/config"
	"github.com/telekom/props-override/pkg/metrics"
)

// Config holds rate limiter configuration
type Config struct {
	// Rate is the number of requests allowed per second
	Rate float64
	// Burst is the maximum number of requests allowed in a burst
	Burst int
	// CleanupInterval is how often to clean up stale entries
	CleanupInterval time.Duration
	// MaxAge is how long to keep an entry after last access
	MaxAge time.Duration
}

// DefaultConfig allows 20 req/s per client with a burst of 50.
func DefaultConfig() Config {
	return Config{
		Rate:            20,
		Burst:           50,
		CleanupInterval: time.Minute,
		MaxAge:          5 * time.Minute,
	}
}

// FromServerConfig converts the file configuration. It returns false when
// limiting is disabled.
func FromServerConfig(rl config.RateLimit) (Config, bool) {
	if rl.Rate < 0 {
		return Config{}, false
	}
	cfg := DefaultConfig()
	if rl.Rate > 0 {
		cfg.Rate = rl.Rate
	}
	if rl.Burst > 0 {
		cfg.Burst = rl.Burst
	}
	return cfg, true
}

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(c *gin.Context) string

// ByClientIP charges requests to the client address.
func ByClientIP(c *gin.Context) string {
	return c.ClientIP()
}

type entry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Limiter keeps one token bucket per key and forgets keys that have been
// idle for longer than MaxAge.
type Limiter struct {
	mu       sync.Mutex
	entries  map[string]*entry
	config   Config
	key      KeyFunc
	done     chan struct{}
	stopOnce sync.Once
}

// New starts a limiter. Stop must be called to release the cleanup goroutine.
func New(cfg Config, key KeyFunc) *Limiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 5 * time.Minute
	}
	if key == nil {
		key = ByClientIP
	}
	l := &Limiter{
		entries: make(map[string]*entry),
		config:  cfg,
		key:     key,
		done:    make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Allow reports whether a request charged to key may proceed.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rate.Limit(l.config.Rate), l.config.Burst)}
		l.entries[key] = e
	}
	e.lastAccess = time.Now()
	return e.limiter.Allow()
}

// Middleware rejects requests over the limit with 429.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(l.key(c)) {
			metrics.RateLimitedRequests.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apiresponses.APIError{
				Error: "rate limit exceeded, please try again later",
				Code:  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.cleanupStaleEntries()
		}
	}
}

func (l *Limiter) cleanupStaleEntries() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for k, e := range l.entries {
		if now.Sub(e.lastAccess) > l.config.MaxAge {
			delete(l.entries, k)
		}
	}
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Config returns the effective configuration.
func (l *Limiter) Config() Config {
	return l.config
}
