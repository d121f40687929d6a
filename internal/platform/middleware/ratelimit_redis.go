package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisRateLimiter is a fixed-window limiter shared by every server
// instance pointing at the same Redis.
type RedisRateLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	prefix string
}

var redisFixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

func NewRedisRateLimiter(rdb *redis.Client, limit int, window time.Duration, prefix string) *RedisRateLimiter {
	if limit <= 0 {
		limit = 100
	}
	if window <= 0 {
		window = time.Second
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "hms:rl"
	}
	return &RedisRateLimiter{rdb: rdb, limit: limit, window: window, prefix: prefix}
}

// Middleware enforces the limit. With failOpen, Redis errors let the
// request through; otherwise they produce a 503.
func (rl *RedisRateLimiter) Middleware(logger zerolog.Logger, failOpen bool) echo.MiddlewareFunc {
	limit := strconv.Itoa(rl.limit)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			count, err := rl.incr(c.Request().Context(), rl.prefix+":"+rateLimitKey(c))
			if err != nil {
				logger.Warn().Err(err).Msg("redis rate limiter error")
				if failOpen {
					return next(c)
				}
				return echo.NewHTTPError(http.StatusServiceUnavailable, "rate limiter unavailable")
			}

			c.Response().Header().Set("X-RateLimit-Limit", limit)
			if count > int64(rl.limit) {
				c.Response().Header().Set("X-RateLimit-Remaining", "0")
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())+1))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(int64(rl.limit)-count, 10))
			return next(c)
		}
	}
}

func (rl *RedisRateLimiter) incr(ctx context.Context, key string) (int64, error) {
	ms := rl.window.Milliseconds()
	if ms <= 0 {
		ms = 1000
	}
	res, err := redisFixedWindowScript.Run(ctx, rl.rdb, []string{key}, ms).Result()
	if err != nil {
		return 0, err
	}
	return scriptCount(res)
}

func scriptCount(res interface{}) (int64, error) {
	switch v := res.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, err
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unexpected redis script result type %T", res)
	}
}
