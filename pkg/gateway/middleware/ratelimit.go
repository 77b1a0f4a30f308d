package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/neurotrace/intake/pkg/common/logger"
)

// WindowCounter counts hits for key in the current fixed window.
type WindowCounter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounter shares windows across service replicas.
type RedisCounter struct {
	client *redis.Client
	prefix string
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client, prefix: "intake:ratelimit:"}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	slot := time.Now().UnixNano() / int64(window)
	k := fmt.Sprintf("%s%s:%d", c.prefix, key, slot)

	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// MemoryCounter is a per-process fallback used when Redis is not configured.
type MemoryCounter struct {
	mu      sync.Mutex
	slot    int64
	counts  map[string]int64
	nowFunc func() time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[string]int64), nowFunc: time.Now}
}

func (c *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	slot := c.nowFunc().UnixNano() / int64(window)
	if slot != c.slot {
		c.slot = slot
		c.counts = make(map[string]int64)
	}
	c.counts[key]++
	return c.counts[key], nil
}

// RateLimit allows limit requests per client address per window. Counter
// errors let the request through. X-Forwarded-For is only honoured when the
// direct peer is one of trustedProxies.
func RateLimit(counter WindowCounter, limit int, window time.Duration, trustedProxies []string) func(http.Handler) http.Handler {
	trusted := make(map[string]struct{}, len(trustedProxies))
	for _, p := range trustedProxies {
		trusted[strings.TrimSpace(p)] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n, err := counter.Incr(r.Context(), clientKey(r, trusted), window)
			if err != nil {
				logger.Log.WithError(err).Warn("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}

			remaining := int64(limit) - n
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if n > int64(limit) {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientKey walks X-Forwarded-For from the right and returns the first hop not
// added by a trusted proxy.
func clientKey(r *http.Request, trusted map[string]struct{}) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if _, ok := trusted[host]; !ok {
		return host
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if _, ok := trusted[hop]; !ok {
			return hop
		}
		host = hop
	}
	return host
}
