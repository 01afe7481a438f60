package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Task type constants keep queue producers and consumers aligned.
const (
	TypeViewsRecompute = "views:recompute"
)

// ViewsRecomputePayload describes a full derived-view reconciliation pass.
type ViewsRecomputePayload struct {
	CorrelationID string `json:"correlation_id"`
}

// NewViewsRecomputeTask builds a derived-view recompute task.
func NewViewsRecomputeTask(correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ViewsRecomputePayload{CorrelationID: correlationID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeViewsRecompute, payload), nil
}
