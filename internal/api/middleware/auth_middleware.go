package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pipetrack/internal/auth"
)

// Context keys set by AuthMiddleware.
const (
	ContextUserIDKey             = "userID"
	ContextRoleKey               = "role"
	ContextEmpIDKey              = "empID"
	ContextMustChangePasswordKey = "mustChangePassword"
)

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

// AuthMiddleware validates the access token and injects the caller's
// identity (user id, normalized role, employee id) into the context.
func AuthMiddleware(authService *auth.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c)
			return
		}

		rawToken := parts[1]
		if strings.TrimSpace(rawToken) == "" {
			abortUnauthorized(c)
			return
		}

		claims, err := authService.ValidateToken(rawToken)
		if err != nil || claims.TokenType != "access" {
			abortUnauthorized(c)
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextRoleKey, claims.Role)
		c.Set(ContextEmpIDKey, claims.EmpID)
		c.Set(ContextMustChangePasswordKey, claims.MustChangePassword)
		c.Next()
	}
}

// RequireRole rejects callers whose role is not in the allowed set. Must
// run after AuthMiddleware.
func RequireRole(allowed ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := RoleFromContext(c)
		if !ok {
			abortUnauthorized(c)
			return
		}
		for _, r := range allowed {
			if role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
	}
}

// RoleFromContext returns the caller's normalized role.
func RoleFromContext(c *gin.Context) (auth.Role, bool) {
	value, exists := c.Get(ContextRoleKey)
	if !exists {
		return "", false
	}
	role, ok := value.(auth.Role)
	if !ok || !role.Valid() {
		return "", false
	}
	return role, true
}

// EmpIDFromContext returns the caller's employee id, empty for staff roles.
func EmpIDFromContext(c *gin.Context) string {
	value, exists := c.Get(ContextEmpIDKey)
	if !exists {
		return ""
	}
	empID, _ := value.(string)
	return empID
}
