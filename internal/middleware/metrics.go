package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/skill-training-api/internal/service"
)

// unmatchedRoute labels requests no route matched so raw paths never become label values.
const unmatchedRoute = "unmatched"

// Metrics records method, route template, status and latency of every request.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	if metricsSvc == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
