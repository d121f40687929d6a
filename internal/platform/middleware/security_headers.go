package middleware

import (
	"github.com/labstack/echo/v4"
)

var apiHeaders = [...][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Referrer-Policy", "no-referrer"},
	// Availability changes with every booking.
	{"Cache-Control", "no-store"},
}

// SecurityHeaders sets the response headers for the JSON API. HSTS is only
// sent when hsts is true, so plain-HTTP development servers stay reachable.
func SecurityHeaders(hsts bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for _, kv := range apiHeaders {
				h.Set(kv[0], kv[1])
			}
			if hsts {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			return next(c)
		}
	}
}
