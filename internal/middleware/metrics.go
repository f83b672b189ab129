package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tas-project/tas-api/internal/service"
)

// Metrics records per-route request counts and latencies. Routes are labeled
// by their template so path parameters do not explode the cardinality, and
// the scrape endpoint itself stays out of the histograms.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		if route == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
