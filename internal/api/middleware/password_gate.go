package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequirePasswordChangeCompletedMiddleware blocks seeded accounts that have
// not replaced their bootstrap password yet. Must run after AuthMiddleware.
func RequirePasswordChangeCompletedMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(ContextMustChangePasswordKey)
		if !exists {
			c.Next()
			return
		}
		mustChange, _ := value.(bool)
		if mustChange {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "password change required",
				"code":  "PASSWORD_CHANGE_REQUIRED",
			})
			return
		}
		c.Next()
	}
}
