package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/tcg-binder/internal/metrics"
)

// MetricsMiddleware records request counts and latency per route template
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// Unmatched paths share one label so scanners can't blow up cardinality
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		if path == "/metrics" {
			return
		}

		method := c.Request.Method
		metrics.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
