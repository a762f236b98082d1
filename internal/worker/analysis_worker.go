package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Tim-Alpha/video-description-api/internal/pipeline"
)

// TaskTypeVideoAnalysis is the asynq task type for one analysis run.
const TaskTypeVideoAnalysis = "analysis:video"

// QueueAnalysis is the asynq queue analysis runs are scheduled on.
const QueueAnalysis = "analysis"

type analysisPayload struct {
	TaskID string `json:"taskId"`
}

// AsynqEnqueuer schedules analysis runs on the Redis-backed queue.
type AsynqEnqueuer struct {
	client *asynq.Client
}

func NewAsynqEnqueuer(client *asynq.Client) *AsynqEnqueuer {
	return &AsynqEnqueuer{client: client}
}

func (e *AsynqEnqueuer) EnqueueAnalysis(ctx context.Context, taskID string) error {
	data, err := json.Marshal(analysisPayload{TaskID: taskID})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	_, err = e.client.EnqueueContext(ctx, asynq.NewTask(TaskTypeVideoAnalysis, data),
		asynq.Queue(QueueAnalysis),
		asynq.MaxRetry(0),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// AnalysisWorker processes analysis tasks off the queue.
type AnalysisWorker struct {
	pipeline *pipeline.Pipeline
}

func NewAnalysisWorker(p *pipeline.Pipeline) *AnalysisWorker {
	return &AnalysisWorker{pipeline: p}
}

// ProcessTask runs the pipeline for one queued task. Failures are already
// recorded terminally on the task record, so asynq must not retry them.
func (w *AnalysisWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload analysisPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}

	log.Printf("Starting analysis task: %s", payload.TaskID)
	if err := w.pipeline.Run(ctx, payload.TaskID); err != nil {
		log.Printf("Analysis task %s failed: %v", payload.TaskID, err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	log.Printf("Analysis task %s completed", payload.TaskID)
	return nil
}
