package metrics

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	taskProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pipetrack",
			Subsystem: "asynq",
			Name:      "tasks_processed_total",
			Help:      "Total number of processed tasks.",
		},
		[]string{"task_type"},
	)

	taskFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pipetrack",
			Subsystem: "asynq",
			Name:      "tasks_failed_total",
			Help:      "Total number of failed tasks.",
		},
		[]string{"task_type"},
	)

	taskInProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pipetrack",
			Subsystem: "asynq",
			Name:      "tasks_in_progress",
			Help:      "Number of tasks currently being processed.",
		},
		[]string{"task_type"},
	)
)

// AsynqMetricsMiddleware records task processing metrics.
func AsynqMetricsMiddleware() asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
			taskType := task.Type()
			taskInProgress.WithLabelValues(taskType).Inc()
			defer taskInProgress.WithLabelValues(taskType).Dec()

			err := next.ProcessTask(ctx, task)
			if err != nil {
				taskFailedTotal.WithLabelValues(taskType).Inc()
			}

			taskProcessedTotal.WithLabelValues(taskType).Inc()

			return err
		})
	}
}
