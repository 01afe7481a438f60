package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// CorrelationIDHeader is the request/response header carrying the id.
	CorrelationIDHeader = "X-Correlation-ID"
	// ContextCorrelationIDKey is the gin context key for the id.
	ContextCorrelationIDKey = "correlationID"
)

// CorrelationIDMiddleware reuses the inbound correlation id or mints a new
// one, and echoes it back on the response.
func CorrelationIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(CorrelationIDHeader)
		if correlationID == "" {
			correlationID = uuid.NewString()
		}
		c.Set(ContextCorrelationIDKey, correlationID)
		c.Writer.Header().Set(CorrelationIDHeader, correlationID)
		c.Next()
	}
}

// GetCorrelationID returns the id set by CorrelationIDMiddleware, or "".
func GetCorrelationID(c *gin.Context) string {
	value, exists := c.Get(ContextCorrelationIDKey)
	if !exists {
		return ""
	}
	id, _ := value.(string)
	return id
}
