package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// probePaths are logged at debug so orchestrator probes do not flood the log.
var probePaths = map[string]bool{
	"/api/v1/gateway/health": true,
	"/api/v1/gateway/ready":  true,
	"/api/v1/gateway/live":   true,
	"/metrics":               true,
}

// LoggingMiddleware logs one line per request.
type LoggingMiddleware struct {
	logger zerolog.Logger
}

// NewLoggingMiddleware creates a LoggingMiddleware on the global logger.
func NewLoggingMiddleware() *LoggingMiddleware {
	return &LoggingMiddleware{logger: log.Logger}
}

// Logger returns the gin middleware. Streams are logged once they end;
// the query string is never logged because it may carry the operator token.
func (m *LoggingMiddleware) Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()

		status := c.Writer.Status()
		var event *zerolog.Event
		switch {
		case status >= 500:
			event = m.logger.Error()
		case status >= 400:
			event = m.logger.Warn()
		case probePaths[c.Request.URL.Path]:
			event = m.logger.Debug()
		default:
			event = m.logger.Info()
		}

		if id := c.Param("id"); id != "" {
			event = event.Str("session_id", id)
		}
		event.
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("route", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request completed")
	}
}

// GetRequestID returns the id assigned to the request.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
