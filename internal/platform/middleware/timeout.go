package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout puts a deadline on the request context. Storage calls
// observe it through their context; a handler that fails because the
// deadline passed is answered with a 504. Zero disables the deadline.
//
// The handler runs on the request goroutine so a timed out booking cannot
// keep writing to the response after the middleware has answered.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if timeout <= 0 {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if err == nil || c.Response().Committed {
				return err
			}
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return echo.NewHTTPError(http.StatusGatewayTimeout, "request took too long to process").SetInternal(err)
			}
			return err
		}
	}
}
