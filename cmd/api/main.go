package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"pipetrack/internal/api"
	"pipetrack/internal/auth"
	"pipetrack/internal/config"
	"pipetrack/internal/database"
	"pipetrack/internal/pipeline"
	"pipetrack/internal/scan"
	"pipetrack/internal/scoring"
	"pipetrack/internal/storage"
	"pipetrack/internal/views"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	logger.Info("database connection ready",
		slog.String("host", cfg.Database.Host),
		slog.String("name", cfg.Database.Name),
	)

	if err := db.AutoMigrate(database.Models()...); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}
	logger.Info("database migrated")

	privateKeyPEM, err := os.ReadFile(cfg.Auth.PrivateKeyPath)
	if err != nil {
		log.Fatalf("read jwt private key: %v", err)
	}
	publicKeyPEM, err := os.ReadFile(cfg.Auth.PublicKeyPath)
	if err != nil {
		log.Fatalf("read jwt public key: %v", err)
	}
	authService, err := auth.NewAuthService(privateKeyPEM, publicKeyPEM, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	if err != nil {
		log.Fatalf("init auth service: %v", err)
	}

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	logger.Info("storage client ready", slog.String("bucket", cfg.MinIO.Bucket))

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()

	var scanner pipeline.Scanner
	if cfg.Clamd.Addr != "" {
		scanner = scan.NewClamd(cfg.Clamd.Addr)
		logger.Info("attachment scanning enabled", slog.String("clamd_addr", cfg.Clamd.Addr))
	}

	dispatcher := views.NewDispatcher(redisClient, cfg.Pipeline.ReadyThreshold)
	engine := pipeline.NewEngine(db, storageClient, dispatcher, scanner, logger)
	scoringService := scoring.NewService(db)

	router := api.NewRouter(logger)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	api.RegisterRoutes(router, cfg, db, engine, dispatcher, scoringService, authService, redisClient, storageClient, logger)

	address := fmt.Sprintf(":%d", cfg.API.Port)
	logger.Info("api listening", slog.String("address", address))
	if err := router.Run(address); err != nil {
		log.Fatalf("failed to start api server: %v", err)
	}
}
