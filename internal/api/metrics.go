package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PbVrCt/serverless-chat-demo/internal/metrics"
)

// recordMetrics counts every request and observes its duration, labelled by
// route template so path parameters never raise cardinality.
func recordMetrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
