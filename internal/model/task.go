package model

import "time"

// TaskStatus is the lifecycle state of an analysis task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusError      TaskStatus = "error"
)

// Terminal reports whether no further transitions are permitted.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusError
}

// TaskSource identifies the media a task operates on. Exactly one of
// FilePath (an already-persisted upload) or URL is set.
type TaskSource struct {
	FilePath string `json:"file_path,omitempty"`
	Filename string `json:"filename,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Task represents one submitted analysis request and its lifecycle state.
type Task struct {
	ID           string          `json:"task_id"`
	Status       TaskStatus      `json:"status"`
	Source       TaskSource      `json:"source"`
	Identifier   string          `json:"identifier,omitempty"`
	Progress     int             `json:"progress"`
	CurrentStep  string          `json:"current_step,omitempty"`
	Result       *AnalysisResult `json:"result,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// Clone returns a deep copy so store snapshots never alias live records.
func (t *Task) Clone() *Task {
	cp := *t
	if t.StartedAt != nil {
		v := *t.StartedAt
		cp.StartedAt = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		cp.CompletedAt = &v
	}
	if t.Result != nil {
		cp.Result = t.Result.Clone()
	}
	return &cp
}
