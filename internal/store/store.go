// Package store holds task records and is the single source of truth for
// the polling protocol. All mutation goes through Create/UpdateStatus;
// readers always observe a fully-written snapshot.
package store

import (
	"context"
	"errors"

	"github.com/Tim-Alpha/video-description-api/internal/model"
)

var (
	// ErrTaskNotFound is returned when a task ID was never created or the
	// store was reset.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidTransition is returned for any attempt to move a task out
	// of a terminal state, or to skip a lifecycle step.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// TaskStore is the task registry. Constructed at process start and passed
// to handlers and workers explicitly; implementations are an in-memory map
// and a Redis-backed store.
type TaskStore interface {
	// Create allocates a fresh unique ID and inserts a pending record.
	Create(ctx context.Context, source model.TaskSource, identifier string) (*model.Task, error)

	// Get returns a snapshot of the task, or ErrTaskNotFound.
	Get(ctx context.Context, id string) (*model.Task, error)

	// UpdateStatus transitions a record. Only the analysis pipeline calls
	// this. result must be set iff status is completed; errMsg iff status
	// is error. Rejects transitions out of terminal states with
	// ErrInvalidTransition.
	UpdateStatus(ctx context.Context, id string, status model.TaskStatus, result *model.AnalysisResult, errMsg string) error

	// UpdateProgress records pipeline progress on a non-terminal task.
	// Best effort; progress on a terminal task is ignored.
	UpdateProgress(ctx context.Context, id string, progress int, step string) error
}

// validTransition encodes the task state machine:
// pending -> processing -> completed | error. A worker that dies before
// marking processing may still fail the task from pending.
func validTransition(from, to model.TaskStatus) bool {
	switch from {
	case model.TaskStatusPending:
		return to == model.TaskStatusProcessing || to == model.TaskStatusError
	case model.TaskStatusProcessing:
		return to == model.TaskStatusCompleted || to == model.TaskStatusError
	default:
		return false
	}
}
