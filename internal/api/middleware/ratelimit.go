package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Limiter counts attempts per key in fixed windows.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

type bucket struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps windows in process memory. It suits a single
// instance; use RedisLimiter when several instances share traffic.
type MemoryLimiter struct {
	mu      sync.Mutex
	win     time.Duration
	max     int
	buckets map[string]*bucket
	stopCh  chan struct{}
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	l := &MemoryLimiter{
		win:     window,
		max:     max,
		buckets: make(map[string]*bucket),
		stopCh:  make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.buckets[key]
	if b == nil || now.After(b.resetAt) {
		b = &bucket{count: 0, resetAt: now.Add(l.win)}
		l.buckets[key] = b
	}
	b.count++
	if b.count <= l.max {
		return true, 0, nil
	}
	return false, time.Until(b.resetAt), nil
}

func (l *MemoryLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCh:
			return
		}
	}
}

func (l *MemoryLimiter) cleanup() {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if now.After(b.resetAt) {
			delete(l.buckets, key)
		}
	}
}

func (l *MemoryLimiter) Stop() {
	close(l.stopCh)
}

const rateLimitPrefix = "windplex:ratelimit:"

// RedisLimiter shares windows between instances through Redis.
type RedisLimiter struct {
	client *redis.Client
	win    time.Duration
	max    int
}

func NewRedisLimiter(client *redis.Client, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, win: window, max: max}
}

// The window starts with the first hit; INCR and PEXPIRE run atomically so
// a key never outlives its window.
var fixedWindowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	px := l.win.Milliseconds()
	res, err := fixedWindowScript.Run(ctx, l.client, []string{rateLimitPrefix + key}, px).Int64Slice()
	if err != nil {
		return true, 0, err
	}
	if len(res) != 2 {
		return true, 0, fmt.Errorf("unexpected rate limit reply %v", res)
	}
	if res[0] <= int64(l.max) {
		return true, 0, nil
	}
	return false, time.Duration(res[1]) * time.Millisecond, nil
}

// NewRedisClient connects and pings, the same way for every Redis user in
// the service.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// RateLimit throttles a route per client IP. Limiter failures are logged
// and let the request through.
func RateLimit(limiter Limiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.FullPath() + ":" + c.ClientIP()
		ok, retryAfter, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Warn("rate limiter unavailable", "err", err)
			c.Next()
			return
		}
		if !ok {
			c.Header("Retry-After", retryAfterSeconds(retryAfter))
			c.JSON(429, gin.H{"error": "Too many attempts, try again later", "category": "rate_limited"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func retryAfterSeconds(d time.Duration) string {
	if d <= 0 {
		return "0"
	}
	return strconv.Itoa(int(d.Seconds()))
}
