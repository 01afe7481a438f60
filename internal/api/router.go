package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"pipetrack/internal/api/middleware"
	"pipetrack/internal/metrics"
)

// NewRouter builds the gin engine with the ambient middleware chain and the
// health endpoint. Routes are registered separately.
func NewRouter(logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.CorrelationIDMiddleware(),
		middleware.SlogLoggerMiddleware(logger),
		metrics.GinMiddleware(),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}
