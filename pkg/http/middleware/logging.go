package middleware

import (
	"time"

	applogger "MarketSignal/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogging logs every request at debug level and 5xx responses as errors.
func RequestLogging(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			status := c.Response().Status
			fields := []applogger.Field{
				applogger.String("method", req.Method),
				applogger.String("uri", req.RequestURI),
				applogger.String("remote", c.RealIP()),
				applogger.Int("status", status),
				applogger.Duration("duration_ms", time.Since(start)),
			}
			if status >= 500 {
				if err != nil {
					fields = append(fields, applogger.Error(err))
				}
				l.Error("http request failed", fields...)
			} else {
				l.Debug("http request", fields...)
			}
			return nil
		}
	}
}
