package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/hms/hms/internal/platform/auth"
)

// RateLimitConfig configures the in-process limiter used when Redis is not
// available.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// IdleTTL is how long a caller's limiter is kept after its last request.
	IdleTTL time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 50,
		BurstSize:         100,
		IdleTTL:           10 * time.Minute,
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore keeps one token bucket per caller key and drops idle ones
// when it is consulted after a sweep interval.
type limiterStore struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newLimiterStore(cfg RateLimitConfig) *limiterStore {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultRateLimitConfig().IdleTTL
	}
	return &limiterStore{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(cfg.RequestsPerSecond),
		burst:    cfg.BurstSize,
		idleTTL:  cfg.IdleTTL,
		now:      time.Now,
	}
}

func (s *limiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) > s.idleTTL {
		for k, v := range s.visitors {
			if now.Sub(v.lastSeen) > s.idleTTL {
				delete(s.visitors, k)
			}
		}
		s.lastSweep = now
	}

	v, ok := s.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

func (s *limiterStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visitors)
}

// retryAfter is the whole number of seconds until l grants one token.
func retryAfter(l *rate.Limiter, now time.Time) int {
	r := l.ReserveN(now, 1)
	if !r.OK() {
		return 1
	}
	d := r.DelayFrom(now)
	r.CancelAt(now)
	if d == rate.InfDuration {
		return 1
	}
	if secs := int(math.Ceil(d.Seconds())); secs > 1 {
		return secs
	}
	return 1
}

// rateLimitKey buckets authenticated callers by account and everyone else
// by client IP.
func rateLimitKey(c echo.Context) string {
	if actor, ok := auth.ActorFromContext(c.Request().Context()); ok {
		return "actor:" + actor.ID.String()
	}
	return "ip:" + c.RealIP()
}

// RateLimit returns an in-process per-caller rate limiting middleware.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	store := newLimiterStore(cfg)
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', 0, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)

			l := store.get(rateLimitKey(c))
			now := store.now()
			if !l.AllowN(now, 1) {
				h.Set("Retry-After", strconv.Itoa(retryAfter(l, now)))
				h.Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
