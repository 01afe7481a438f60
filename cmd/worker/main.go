package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"pipetrack/internal/config"
	"pipetrack/internal/database"
	"pipetrack/internal/metrics"
	"pipetrack/internal/tasks"
	"pipetrack/internal/views"
	"pipetrack/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	logger.Info("database connection ready for worker")

	redisAddr := cfg.Redis.Addr()
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	dispatcher := views.NewDispatcher(redisClient, cfg.Pipeline.ReadyThreshold)
	recomputeHandler := worker.NewRecomputeHandler(db, dispatcher, redisClient, logger)

	// Reconcile the derived views once at startup so a Redis flush or a
	// missed notification never survives a worker restart.
	if count, err := recomputeHandler.Run(context.Background()); err != nil {
		logger.Error("initial view recompute failed", slog.Any("error", err))
	} else {
		logger.Info("initial view recompute done", slog.Int("candidates", count))
	}

	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
	})

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeViewsRecompute, recomputeHandler)

	// Periodic reconciliation keeps the Redis views honest even when an
	// incremental update was lost.
	scheduler := asynq.NewScheduler(redisOpt, nil)
	recomputeTask, err := tasks.NewViewsRecomputeTask(uuid.NewString())
	if err != nil {
		log.Fatalf("build recompute task: %v", err)
	}
	if _, err := scheduler.Register("@every 10m", recomputeTask); err != nil {
		log.Fatalf("register recompute schedule: %v", err)
	}
	go func() {
		if err := scheduler.Run(); err != nil {
			logger.Error("scheduler stopped", slog.Any("error", err))
		}
	}()

	logger.Info("worker service started", slog.String("redis_addr", redisAddr))
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}
