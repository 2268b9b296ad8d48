package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/skill-training-api/internal/service"
)

// Audit attaches the caller's network origin to the request context so services can stamp
// audit log entries with it.
func Audit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := service.ContextWithClientInfo(c.Request.Context(), service.ClientInfo{
			IP:        c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
