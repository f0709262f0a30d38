package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yungbote/skillgraph-backend/internal/observability"
)

// Metrics records request latency by route template. Probes are not
// recorded, and SSE streams stay open for minutes, so they are skipped too.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if skipMetrics(route) {
			c.Next()
			return
		}
		start := time.Now()
		m.ApiInflightInc()
		defer m.ApiInflightDec()

		c.Next()

		if route == "" {
			route = "unmatched"
		}
		m.ObserveAPI(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

func skipMetrics(route string) bool {
	switch route {
	case "/healthcheck", "/readyz":
		return true
	}
	return strings.HasSuffix(route, "/stream")
}
