package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"pipetrack/internal/database"
	"pipetrack/internal/errcode"
	"pipetrack/internal/tasks"
	"pipetrack/internal/views"
)

// statusChannel carries recompute status messages for operational
// dashboards, mirroring the event stream protocol.
const statusChannel = "pipeline:recompute_status"

// RecomputeStatusMessage reports the outcome of one reconciliation pass.
type RecomputeStatusMessage struct {
	Status        string `json:"status"`
	Candidates    int    `json:"candidates"`
	CorrelationID string `json:"correlation_id"`
	ErrorCode     int    `json:"error_code"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

// RecomputeHandler rebuilds the derived views from the store. It exists as
// a reconciliation path: the engine keeps views current incrementally, and
// this pass repairs any drift (missed notify, flushed Redis).
type RecomputeHandler struct {
	db          *gorm.DB
	dispatcher  *views.Dispatcher
	redisClient redis.UniversalClient
	logger      *slog.Logger
}

// NewRecomputeHandler builds the task handler.
func NewRecomputeHandler(db *gorm.DB, dispatcher *views.Dispatcher, redisClient redis.UniversalClient, logger *slog.Logger) *RecomputeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecomputeHandler{
		db:          db,
		dispatcher:  dispatcher,
		redisClient: redisClient,
		logger:      logger,
	}
}

// ProcessTask implements asynq.Handler.
func (h *RecomputeHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload tasks.ViewsRecomputePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	logger := h.logger.With(slog.String("correlation_id", payload.CorrelationID))

	count, err := h.Run(ctx)
	if err != nil {
		logger.Error("views recompute failed", slog.Any("error", err))
		h.publishStatus(ctx, RecomputeStatusMessage{
			Status:        "failed",
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  err.Error(),
		})
		return err
	}

	logger.Info("views recompute completed", slog.Int("candidates", count))
	h.publishStatus(ctx, RecomputeStatusMessage{
		Status:        "completed",
		Candidates:    count,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	})
	return nil
}

// Run executes one reconciliation pass and returns the candidate count.
func (h *RecomputeHandler) Run(ctx context.Context) (int, error) {
	var candidates []database.Candidate
	if err := h.db.WithContext(ctx).
		Preload("MockInterviews").
		Preload("ClientInterviews").
		Find(&candidates).Error; err != nil {
		return 0, fmt.Errorf("load candidates: %w", err)
	}

	if err := h.dispatcher.Recompute(ctx, candidates); err != nil {
		return 0, err
	}
	return len(candidates), nil
}

func (h *RecomputeHandler) publishStatus(ctx context.Context, msg RecomputeStatusMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("encode recompute status failed", slog.Any("error", err))
		return
	}
	if err := h.redisClient.Publish(ctx, statusChannel, payload).Err(); err != nil {
		h.logger.Error("publish recompute status failed", slog.Any("error", err))
	}
}
