package middleware

import (
	"time"

	xlogger "kisquote/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogging logs each request through the application logger.
func RequestLogging(l *xlogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()
			start := time.Now()

			err := next(c)

			l.Info("http request",
				xlogger.String("method", req.Method),
				xlogger.String("uri", req.RequestURI),
				xlogger.String("remote", req.RemoteAddr),
				xlogger.Int("status", res.Status),
				xlogger.Duration("took_ms", time.Since(start)),
			)
			return err
		}
	}
}
