package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
)

// requestContext returns the request context, or Background for contexts built in tests
// without a request.
func requestContext(c *gin.Context) context.Context {
	if c != nil && c.Request != nil {
		return c.Request.Context()
	}
	return context.Background()
}
