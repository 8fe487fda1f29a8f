package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mockly-backend/internal/observability"
)

// Metrics records request latency and in-flight count per route.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		ctx := c.Request.Context()
		m.APIInflight(ctx, 1)
		defer m.APIInflight(ctx, -1)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.ObserveAPI(ctx, c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
