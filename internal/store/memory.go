package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tim-Alpha/video-description-api/internal/model"
)

// MemoryStore keeps task records in a mutex-guarded map. Records are
// retained for the process lifetime. Snapshots are deep copies, so a
// reader never sees a half-written result.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*model.Task
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*model.Task)}
}

func (s *MemoryStore) Create(ctx context.Context, source model.TaskSource, identifier string) (*model.Task, error) {
	task := &model.Task{
		ID:         uuid.New().String(),
		Status:     model.TaskStatusPending,
		Source:     source,
		Identifier: identifier,
		CreatedAt:  time.Now().UTC(),
	}

	s.mu.Lock()
	s.tasks[task.ID] = task
	s.mu.Unlock()

	return task.Clone(), nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return task.Clone(), nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, status model.TaskStatus, result *model.AnalysisResult, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	if !validTransition(task.Status, status) {
		return ErrInvalidTransition
	}

	applyStatus(task, status, result, errMsg)
	return nil
}

func (s *MemoryStore) UpdateProgress(ctx context.Context, id string, progress int, step string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	if task.Status.Terminal() {
		return nil
	}

	task.Progress = progress
	task.CurrentStep = step
	return nil
}

// applyStatus mutates the record for a validated transition. result and
// error_message stay mutually exclusive across the task lifetime.
func applyStatus(task *model.Task, status model.TaskStatus, result *model.AnalysisResult, errMsg string) {
	now := time.Now().UTC()
	task.Status = status

	switch status {
	case model.TaskStatusProcessing:
		task.StartedAt = &now
	case model.TaskStatusCompleted:
		if result != nil {
			// Clone before normalizing so the caller's bundle is never
			// written through.
			stored := result.Clone()
			stored.Normalize()
			task.Result = stored
		}
		task.ErrorMessage = ""
		task.Progress = 100
		task.CurrentStep = ""
		task.CompletedAt = &now
	case model.TaskStatusError:
		task.Result = nil
		task.ErrorMessage = errMsg
		task.CurrentStep = ""
		task.CompletedAt = &now
	}
}
