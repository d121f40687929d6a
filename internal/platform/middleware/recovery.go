package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxPanicStack = 8 << 10

// Recovery turns a handler panic into a 500, logs it with the goroutine
// stack and marks the request span as failed.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}

				stack := make([]byte, maxPanicStack)
				stack = stack[:runtime.Stack(stack, false)]
				perr, ok := r.(error)
				if !ok {
					perr = fmt.Errorf("%v", r)
				}

				req := c.Request()
				span := trace.SpanFromContext(req.Context())
				span.RecordError(perr)
				span.SetStatus(codes.Error, "panic")

				rid, _ := c.Get("request_id").(string)
				logger.Error().
					Err(perr).
					Str("request_id", rid).
					Str("method", req.Method).
					Str("path", c.Path()).
					Bytes("stack", stack).
					Msg("panic recovered")

				err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(perr)
			}()
			return next(c)
		}
	}
}
