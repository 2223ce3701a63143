package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLoggerMiddleware creates a logging middleware that logs HTTP requests in simple text format
func RequestLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Start timer
		start := time.Now()

		// Process request
		c.Next()

		latency := time.Since(start)

		fmt.Printf("[API] %s | %s | %d | %s | %s\n",
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			latency.String(),
			c.ClientIP(),
		)
	}
}
