package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"pipetrack/internal/api/middleware"
	"pipetrack/internal/auth"
	"pipetrack/internal/config"
	"pipetrack/internal/pipeline"
	"pipetrack/internal/scoring"
	"pipetrack/internal/storage"
	"pipetrack/internal/views"
)

// RegisterRoutes mounts the full /v1 surface onto the router.
func RegisterRoutes(
	router *gin.Engine,
	cfg *config.Config,
	db *gorm.DB,
	engine *pipeline.Engine,
	dispatcher *views.Dispatcher,
	scoringService *scoring.Service,
	authService *auth.AuthService,
	redisClient redis.UniversalClient,
	storageClient *storage.Client,
	logger *slog.Logger,
) {
	authHandler := NewAuthHandler(
		db, authService, redisClient, logger,
		cfg.Auth.LoginRateLimitPerHour, cfg.Auth.LoginLockThreshold, cfg.Auth.LoginLockTTL,
		cfg.API.CookieDomain,
	)
	deliveryHandler := NewDeliveryHandler(db, engine, scoringService, logger)
	salesHandler := NewSalesHandler(db, engine, dispatcher, storageClient, logger)
	employeeHandler := NewEmployeeHandler(db, engine, dispatcher, logger)
	wsHandler := NewWsHandler(redisClient, authService, logger, cfg.API.AllowedOrigins)

	authMiddleware := middleware.AuthMiddleware(authService)
	passwordGate := middleware.RequirePasswordChangeCompletedMiddleware()

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authMiddleware, authHandler.Logout)
			authGroup.POST("/change-password", authMiddleware, authHandler.ChangePassword)
		}

		deliveryGroup := v1.Group("/delivery")
		deliveryGroup.Use(authMiddleware, passwordGate, middleware.RequireRole(auth.RoleDelivery, auth.RoleAdmin))
		{
			deliveryGroup.GET("/candidates", deliveryHandler.Candidates)
			deliveryGroup.GET("/candidates/:empId", deliveryHandler.Candidate)
			deliveryGroup.POST("/schedule", deliveryHandler.ScheduleMock)
			deliveryGroup.PUT("/mock-interviews/:id/feedback", deliveryHandler.SubmitFeedback)
			deliveryGroup.POST("/mock-interviews/:id/send-to-sales", deliveryHandler.SendToSales)
			deliveryGroup.PUT("/mock-interviews/:id/status", deliveryHandler.UpdateStatus)
			deliveryGroup.GET("/interviews/upcoming", deliveryHandler.UpcomingInterviews)
			deliveryGroup.GET("/interviews/completed", deliveryHandler.CompletedInterviews)
			deliveryGroup.GET("/performance", deliveryHandler.Performance)
			deliveryGroup.GET("/performance/averages", deliveryHandler.PerformanceAverages)
		}

		salesGroup := v1.Group("/sales")
		salesGroup.Use(authMiddleware, passwordGate, middleware.RequireRole(auth.RoleSales, auth.RoleAdmin))
		{
			salesGroup.GET("/candidates", salesHandler.Queue)
			salesGroup.POST("/interviews/schedule", salesHandler.ScheduleClientInterview)
			salesGroup.PUT("/client-interviews/:id", salesHandler.UpdateClientInterview)
			salesGroup.GET("/client-interviews", salesHandler.ClientInterviews)
			salesGroup.GET("/client-interviews/:id", salesHandler.ClientInterview)
			salesGroup.GET("/client-interviews/:id/feedback-file", salesHandler.FeedbackFile)
			salesGroup.POST("/candidates/:empId/terminal", salesHandler.MarkTerminal)
			salesGroup.GET("/employees/deployed", salesHandler.Deployed)
			salesGroup.POST("/clients", salesHandler.CreateClient)
			salesGroup.GET("/clients", salesHandler.Clients)
			salesGroup.POST("/job-descriptions", salesHandler.CreateJobDescription)
			salesGroup.GET("/job-descriptions", salesHandler.JobDescriptions)
			salesGroup.GET("/job-descriptions/:id/download", salesHandler.DownloadJobDescription)
			salesGroup.DELETE("/job-descriptions/:id", salesHandler.DeleteJobDescription)
		}

		employeeGroup := v1.Group("/employee")
		employeeGroup.Use(authMiddleware, passwordGate)
		{
			employeeGroup.GET("/me", employeeHandler.Me)
			employeeGroup.GET("/progress", employeeHandler.Progress)
			employeeGroup.GET("/progress/:empId", employeeHandler.Progress)
			employeeGroup.GET("/mock-interviews", employeeHandler.MockInterviews)
			employeeGroup.GET("/client-interviews", employeeHandler.ClientInterviews)
			employeeGroup.POST("/resume", employeeHandler.UploadResume)
			employeeGroup.GET("/ready-for-deployment", employeeHandler.ReadyForDeployment)
			employeeGroup.GET("/deployed", employeeHandler.Deployed)
			employeeGroup.POST("/interview-questions", employeeHandler.AddQuestion)
			employeeGroup.GET("/interview-questions", employeeHandler.Questions)
		}
	}
}
