package db

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
	Healthy         bool   `json:"healthy"`
}

// GetPoolStats returns connection pool statistics.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
		Healthy:         stat.TotalConns() > 0,
	}
}

// Check probes one dependency. A nil error means healthy.
type Check func(ctx context.Context) error

// CheckResults runs every check with a shared deadline and returns the
// per-dependency outcome ("ok" or the error text) and whether all passed.
func CheckResults(ctx context.Context, checks map[string]Check) (map[string]string, bool) {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]string, len(checks))
	healthy := true
	for _, name := range names {
		if err := checks[name](ctx); err != nil {
			results[name] = err.Error()
			healthy = false
			continue
		}
		results[name] = "ok"
	}
	return results, healthy
}

// HealthHandler pings the database, runs the extra dependency checks (redis,
// kafka) and reports pool statistics.
func HealthHandler(pool *pgxpool.Pool, extra map[string]Check) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		checks := map[string]Check{"postgres": pool.Ping}
		for name, check := range extra {
			checks[name] = check
		}

		results, healthy := CheckResults(ctx, checks)
		stats := GetPoolStats(pool)
		stats.Healthy = stats.Healthy && results["postgres"] == "ok"

		body := map[string]interface{}{
			"status": "healthy",
			"checks": results,
			"pool":   stats,
		}
		if !healthy {
			body["status"] = "unhealthy"
			return c.JSON(http.StatusServiceUnavailable, body)
		}
		return c.JSON(http.StatusOK, body)
	}
}
