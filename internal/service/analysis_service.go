package service

import (
	"context"
	"fmt"
	"io"

	"github.com/Tim-Alpha/video-description-api/internal/ingest"
	"github.com/Tim-Alpha/video-description-api/internal/model"
	"github.com/Tim-Alpha/video-description-api/internal/store"
)

// Enqueuer schedules a background pipeline run for a task. The request
// path never executes the pipeline itself.
type Enqueuer interface {
	EnqueueAnalysis(ctx context.Context, taskID string) error
}

// AnalysisService owns the submission and retrieval flows around the
// task store.
type AnalysisService struct {
	store    store.TaskStore
	ingestor *ingest.Ingestor
	enqueuer Enqueuer
}

func NewAnalysisService(taskStore store.TaskStore, ingestor *ingest.Ingestor, enqueuer Enqueuer) *AnalysisService {
	return &AnalysisService{
		store:    taskStore,
		ingestor: ingestor,
		enqueuer: enqueuer,
	}
}

// SubmitUpload persists the uploaded stream, creates a pending task and
// schedules processing. Returns the task snapshot with its fresh ID.
func (s *AnalysisService) SubmitUpload(ctx context.Context, file io.Reader, filename, identifier string) (*model.Task, error) {
	media, err := s.ingestor.SaveUpload(file, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to persist upload: %w", err)
	}

	task, err := s.createAndSchedule(ctx, model.TaskSource{
		FilePath: media.Path,
		Filename: media.Filename,
	}, identifier)
	if err != nil {
		media.Release()
		return nil, err
	}
	return task, nil
}

// SubmitURL creates a pending task for a remote video and schedules
// processing. The fetch itself happens in the pipeline, off the request
// path.
func (s *AnalysisService) SubmitURL(ctx context.Context, url, identifier string) (*model.Task, error) {
	return s.createAndSchedule(ctx, model.TaskSource{URL: url}, identifier)
}

// GetResult returns the polling snapshot for a task.
func (s *AnalysisService) GetResult(ctx context.Context, taskID string) (*model.AnalysisResultResponse, error) {
	task, err := s.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}

	resp := &model.AnalysisResultResponse{
		TaskID:       task.ID,
		Status:       task.Status,
		ErrorMessage: task.ErrorMessage,
	}
	switch task.Status {
	case model.TaskStatusCompleted:
		resp.AnalysisResult = task.Result
	case model.TaskStatusPending, model.TaskStatusProcessing:
		resp.Progress = task.Progress
		resp.CurrentStep = task.CurrentStep
	}
	return resp, nil
}

func (s *AnalysisService) createAndSchedule(ctx context.Context, source model.TaskSource, identifier string) (*model.Task, error) {
	task, err := s.store.Create(ctx, source, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if err := s.enqueuer.EnqueueAnalysis(ctx, task.ID); err != nil {
		// The record stays retrievable; mark it terminal so the client
		// is not left polling a task that will never run.
		if updErr := s.store.UpdateStatus(ctx, task.ID, model.TaskStatusError, nil, "failed to schedule analysis"); updErr != nil {
			return nil, fmt.Errorf("failed to enqueue task: %w", err)
		}
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}
	return task, nil
}
