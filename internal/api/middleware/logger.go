package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

const contextLoggerKey = "slogLogger"

// SlogLoggerMiddleware attaches a request-scoped logger carrying the
// correlation id and emits one access log line per request.
func SlogLoggerMiddleware(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		logger := base.With(
			slog.String("correlation_id", GetCorrelationID(c)),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
		)
		c.Set(contextLoggerKey, logger)

		c.Next()

		attrs := []any{
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
			logger.Error("request", attrs...)
			return
		}
		logger.Info("request", attrs...)
	}
}

// LoggerFromContext returns the request-scoped logger, falling back to the
// process default when the middleware did not run.
func LoggerFromContext(c *gin.Context) *slog.Logger {
	value, exists := c.Get(contextLoggerKey)
	if !exists {
		return slog.Default()
	}
	logger, ok := value.(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return logger
}
