package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/slotwise/courtkeeper/internal/logger"
)

// LoggingConfig holds logging middleware configuration.
type LoggingConfig struct {
	SkipPaths []string
}

// DefaultLoggingConfig returns default logging configuration.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths: []string{
			"/system/health",
		},
	}
}

// RequestLogging returns a logging middleware that stamps each request with
// an id and logs method/path/status/duration on completion.
func RequestLogging(log *logger.Logger, config LoggingConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, skipPath := range config.SkipPaths {
			if c.Request.URL.Path == skipPath {
				c.Next()
				return
			}
		}

		requestID := uuid.New().String()
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method
		clientIP := c.ClientIP()

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		requestLogger := log.With(
			"request_id", requestID,
			"method", method,
			"path", path,
			"client_ip", clientIP,
			"status_code", statusCode,
			"duration_ms", duration.Milliseconds(),
		)

		switch {
		case statusCode >= 500:
			requestLogger.Error("request completed with server error")
		case statusCode >= 400:
			requestLogger.Warn("request completed with client error")
		default:
			requestLogger.Info("request completed")
		}
	}
}

// DefaultRequestLogging returns a logging middleware with default configuration.
func DefaultRequestLogging(log *logger.Logger) gin.HandlerFunc {
	return RequestLogging(log, DefaultLoggingConfig())
}

// ErrorLogging logs any errors gin accumulated during handling.
func ErrorLogging(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		errorLogger := log.With(
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"client_ip", c.ClientIP(),
		)
		if requestID, exists := c.Get("request_id"); exists {
			errorLogger = errorLogger.With("request_id", requestID)
		}

		for _, err := range c.Errors {
			errorLogger.Error("request error", "error", err.Error())
		}
	}
}
