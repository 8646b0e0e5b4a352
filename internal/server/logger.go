package server

import (
	"time"

	"github.com/gin-gonic/gin"
)

// Logger writes one access log line per request.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)

		switch {
		case status >= 500:
			log.Errorf("http: %s %s %d (%s)", c.Request.Method, path, status, latency)
		case status >= 400:
			log.Warnf("http: %s %s %d (%s)", c.Request.Method, path, status, latency)
		default:
			log.Debugf("http: %s %s %d (%s)", c.Request.Method, path, status, latency)
		}
	}
}
