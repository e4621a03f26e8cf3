package httpapi

import (
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/m3rciful/surveybot/core/logger"
	"github.com/m3rciful/surveybot/metrics"
	"log/slog"
)

// requestLog tags every request with a correlation id, records its duration
// and writes one access line per request.
func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := logger.NewRID()
		ctx := logger.WithRID(c.Request.Context(), rid)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		code := c.Writer.Status()
		metrics.HTTPDuration.
			WithLabelValues(route, strconv.Itoa(code)).
			Observe(time.Since(start).Seconds())

		level := slog.LevelInfo
		if code >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.HTTP.LogAttrs(ctx, level, "request",
			slog.String("event", "http.request"),
			slog.String("rid", rid),
			slog.String("method", c.Request.Method),
			slog.String("route", route),
			slog.Int("code", code),
			slog.Duration("duration", logger.Took(start)),
		)
	}
}

// recovery converts a handler panic into a 500 and logs the stack, keeping
// one bad request from taking the server down.
func recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.HTTP.Error("panic recovered",
					slog.String("event", "http.panic"),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}
