package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"lyftr/internal/constants"
	"lyftr/pkg/errors"
	"lyftr/pkg/logging"
	"lyftr/pkg/metrics"
)

// Gin context keys that handlers set for the request log line.
const (
	KeyRequestID = "request_id"
	KeyMessageID = "message_id"
	KeyDup       = "dup"
	KeyResult    = "result"
)

const notFoundPath = "not_found"

type requestLogger interface {
	Infow(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
}

// Standard returns the request chain shared by every route. Recovery sits
// innermost so the 500 it writes is seen by the log line and the metrics.
func Standard(logger requestLogger, sink metrics.Sink) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		RequestIDMiddleware(),
		LoggerMiddleware(logger),
		MetricsMiddleware(sink),
		RecoveryMiddleware(logger),
	}
}

// LoggerMiddleware writes exactly one structured line per request.
func LoggerMiddleware(logger requestLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		logFields := []interface{}{
			"request_id", c.GetString(KeyRequestID),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", statusCode,
			"latency_ms", float64(latency.Microseconds()) / 1000.0,
		}

		if messageID, ok := c.Get(KeyMessageID); ok {
			logFields = append(logFields, "message_id", messageID)
		}
		if dup, ok := c.Get(KeyDup); ok {
			logFields = append(logFields, "dup", dup)
		}
		if result, ok := c.Get(KeyResult); ok {
			logFields = append(logFields, "result", result)
		}

		if errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String(); errorMessage != "" {
			logFields = append(logFields, "error", errorMessage)
		}

		if statusCode >= 500 {
			logger.Errorw("request", logFields...)
		} else {
			logger.Infow("request", logFields...)
		}
	}
}

func RecoveryMiddleware(logger interface {
	Errorw(msg string, keysAndValues ...interface{})
}) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		err := errors.RecoverPanic(recovered)
		logger.Errorw("panic recovered",
			"request_id", c.GetString(KeyRequestID),
			"error", err,
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		)
		c.AbortWithStatusJSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
	})
}

// RequestIDMiddleware reuses an inbound X-Request-ID or mints a UUID, and puts
// it on both the gin context and the request context.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(constants.RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(KeyRequestID, requestID)
		c.Header(constants.RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

// MetricsMiddleware records one http_requests_total increment and one latency
// observation for every request, labelled by route template.
func MetricsMiddleware(sink metrics.Sink) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = notFoundPath
		}
		sink.ObserveHTTPRequest(path, c.Writer.Status(), time.Since(start))
	}
}
