package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const defaultBodyLimit = 1 << 20

// BodyLimit caps request bodies at limit ("64K", "1M", a bare byte count).
// Oversized bodies are refused up front when Content-Length says so, and
// otherwise fail the first read past the cap; either way the client gets
// a 413 rather than the binder's 400.
func BodyLimit(limit string) echo.MiddlewareFunc {
	max := parseLimit(limit)
	tooLarge := fmt.Sprintf("request body exceeds %d bytes", max)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}
			if req.ContentLength > max {
				return echo.NewHTTPError(http.StatusRequestEntityTooLarge, tooLarge)
			}

			req.Body = http.MaxBytesReader(c.Response(), req.Body, max)
			err := next(c)

			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				return echo.NewHTTPError(http.StatusRequestEntityTooLarge, tooLarge).SetInternal(err)
			}
			return err
		}
	}
}

// parseLimit reads "512K", "1M", "1G" or a byte count, with an optional
// trailing B. Anything else yields 1 MB.
func parseLimit(s string) int64 {
	s = strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(s)), "B")
	shift := 0
	if n := len(s); n > 0 {
		switch s[n-1] {
		case 'K':
			shift = 10
		case 'M':
			shift = 20
		case 'G':
			shift = 30
		}
		if shift > 0 {
			s = s[:n-1]
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return defaultBodyLimit
	}
	return n << shift
}
