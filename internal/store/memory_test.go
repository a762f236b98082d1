package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Tim-Alpha/video-description-api/internal/model"
)

func newTask(t *testing.T, s *MemoryStore) *model.Task {
	t.Helper()
	task, err := s.Create(context.Background(), model.TaskSource{URL: "https://host/video.mp4"}, "client-42")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	return task
}

func TestCreate_PendingAndResolvable(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	task := newTask(t, s)
	if task.ID == "" {
		t.Fatal("expected a task ID")
	}
	if task.Status != model.TaskStatusPending {
		t.Errorf("expected pending, got %s", task.Status)
	}
	if task.Identifier != "client-42" {
		t.Errorf("identifier not stored verbatim: %q", task.Identifier)
	}

	got, err := s.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.ID != task.ID || got.Status != model.TaskStatusPending {
		t.Errorf("unexpected snapshot: %+v", got)
	}
}

func TestCreate_UniqueIDs(t *testing.T) {
	s := NewMemoryStore()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		task := newTask(t, s)
		if seen[task.ID] {
			t.Fatalf("duplicate task ID %s", task.ID)
		}
		seen[task.ID] = true
	}
}

func TestGet_NotFound(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Get(context.Background(), "never-created"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestUpdateStatus_HappyPath(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	task := newTask(t, s)

	if err := s.UpdateStatus(ctx, task.ID, model.TaskStatusProcessing, nil, ""); err != nil {
		t.Fatalf("pending -> processing failed: %v", err)
	}

	result := &model.AnalysisResult{Description: "a short clip"}
	if err := s.UpdateStatus(ctx, task.ID, model.TaskStatusCompleted, result, ""); err != nil {
		t.Fatalf("processing -> completed failed: %v", err)
	}

	got, err := s.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != model.TaskStatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
	if got.Result == nil || got.Result.Description != "a short clip" {
		t.Errorf("result not stored: %+v", got.Result)
	}
	if got.ErrorMessage != "" {
		t.Errorf("error_message must be absent on completed task, got %q", got.ErrorMessage)
	}
	if got.Result.Keywords == nil || got.Result.Topics == nil {
		t.Error("collections must be normalized to empty, not nil")
	}
}

func TestUpdateStatus_ErrorPath(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	task := newTask(t, s)

	if err := s.UpdateStatus(ctx, task.ID, model.TaskStatusProcessing, nil, ""); err != nil {
		t.Fatalf("pending -> processing failed: %v", err)
	}
	if err := s.UpdateStatus(ctx, task.ID, model.TaskStatusError, nil, "transcription failed: timeout"); err != nil {
		t.Fatalf("processing -> error failed: %v", err)
	}

	got, _ := s.Get(ctx, task.ID)
	if got.Status != model.TaskStatusError {
		t.Errorf("expected error, got %s", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Error("expected an error message")
	}
	if got.Result != nil {
		t.Error("result must be absent on errored task")
	}
}

func TestUpdateStatus_TerminalIsImmutable(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, terminal := range []model.TaskStatus{model.TaskStatusCompleted, model.TaskStatusError} {
		task := newTask(t, s)
		if err := s.UpdateStatus(ctx, task.ID, model.TaskStatusProcessing, nil, ""); err != nil {
			t.Fatal(err)
		}
		if err := s.UpdateStatus(ctx, task.ID, terminal, &model.AnalysisResult{}, "boom"); err != nil {
			t.Fatal(err)
		}

		for _, next := range []model.TaskStatus{
			model.TaskStatusPending, model.TaskStatusProcessing,
			model.TaskStatusCompleted, model.TaskStatusError,
		} {
			err := s.UpdateStatus(ctx, task.ID, next, nil, "again")
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("%s -> %s: expected ErrInvalidTransition, got %v", terminal, next, err)
			}
		}
	}
}

func TestUpdateStatus_SkippingLifecycleRejected(t *testing.T) {
	s := NewMemoryStore()
	task := newTask(t, s)

	err := s.UpdateStatus(context.Background(), task.ID, model.TaskStatusCompleted, &model.AnalysisResult{}, "")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("pending -> completed: expected ErrInvalidTransition, got %v", err)
	}
}

func TestUpdateProgress_IgnoredOnTerminal(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	task := newTask(t, s)

	if err := s.UpdateProgress(ctx, task.ID, 40, "Transcribing audio"); err != nil {
		t.Fatalf("progress update failed: %v", err)
	}
	got, _ := s.Get(ctx, task.ID)
	if got.Progress != 40 || got.CurrentStep != "Transcribing audio" {
		t.Errorf("progress not recorded: %+v", got)
	}

	_ = s.UpdateStatus(ctx, task.ID, model.TaskStatusProcessing, nil, "")
	_ = s.UpdateStatus(ctx, task.ID, model.TaskStatusError, nil, "fetch failed")
	if err := s.UpdateProgress(ctx, task.ID, 99, "late"); err != nil {
		t.Fatalf("progress on terminal task must be a no-op, got %v", err)
	}
	got, _ = s.Get(ctx, task.ID)
	if got.CurrentStep == "late" {
		t.Error("progress must not mutate a terminal task")
	}
}

func TestGet_SnapshotIsolation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	task := newTask(t, s)
	_ = s.UpdateStatus(ctx, task.ID, model.TaskStatusProcessing, nil, "")
	_ = s.UpdateStatus(ctx, task.ID, model.TaskStatusCompleted, &model.AnalysisResult{Description: "original"}, "")

	snap, _ := s.Get(ctx, task.ID)
	snap.Result.Description = "mutated by caller"
	snap.Result.Keywords = append(snap.Result.Keywords, model.Keyword{Keyword: "x", Weight: 1})

	fresh, _ := s.Get(ctx, task.ID)
	if fresh.Result.Description != "original" {
		t.Error("caller mutation leaked into the store")
	}
	if len(fresh.Result.Keywords) != 0 {
		t.Error("caller append leaked into the store")
	}
}

func TestConcurrentWriters_ExactlyOneTerminal(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	task := newTask(t, s)
	_ = s.UpdateStatus(ctx, task.ID, model.TaskStatusProcessing, nil, "")

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := model.TaskStatusCompleted
			var result *model.AnalysisResult
			msg := ""
			if i%2 == 0 {
				status = model.TaskStatusError
				msg = "lost the race"
			} else {
				result = &model.AnalysisResult{Description: "won the race"}
			}
			errs[i] = s.UpdateStatus(ctx, task.ID, status, result, msg)
		}(i)
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("expected exactly one writer to win, got %d", succeeded)
	}

	got, _ := s.Get(ctx, task.ID)
	if !got.Status.Terminal() {
		t.Errorf("task must end terminal, got %s", got.Status)
	}
}

func TestUpdateStatus_DoesNotMutateCallerBundle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	task := newTask(t, s)
	_ = s.UpdateStatus(ctx, task.ID, model.TaskStatusProcessing, nil, "")

	result := &model.AnalysisResult{Description: "a short clip"}
	if err := s.UpdateStatus(ctx, task.ID, model.TaskStatusCompleted, result, ""); err != nil {
		t.Fatal(err)
	}

	if result.Keywords != nil || result.Topics != nil || result.PersonIdentity != nil {
		t.Error("store normalized through the caller's bundle")
	}

	got, _ := s.Get(ctx, task.ID)
	if got.Result.Keywords == nil || got.Result.Topics == nil {
		t.Error("stored bundle must still be normalized")
	}
}

func TestUpdateProgress_RacingCompletionNeverClobbersTerminal(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	task := newTask(t, s)
	_ = s.UpdateStatus(ctx, task.ID, model.TaskStatusProcessing, nil, "")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = s.UpdateProgress(ctx, task.ID, i, "Transcribing audio")
		}
	}()
	go func() {
		defer wg.Done()
		_ = s.UpdateStatus(ctx, task.ID, model.TaskStatusCompleted, &model.AnalysisResult{Description: "done"}, "")
	}()
	wg.Wait()

	got, _ := s.Get(ctx, task.ID)
	if got.Status != model.TaskStatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.Result == nil || got.Result.Description != "done" {
		t.Error("a late progress write erased the stored result")
	}
	if got.Progress != 100 {
		t.Errorf("terminal progress must stay 100, got %d", got.Progress)
	}
}

func TestConcurrentReadersDuringWrite(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	task := newTask(t, s)
	_ = s.UpdateStatus(ctx, task.ID, model.TaskStatusProcessing, nil, "")

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.UpdateStatus(ctx, task.ID, model.TaskStatusCompleted, &model.AnalysisResult{Description: "done"}, "")
	}()

	for i := 0; i < 100; i++ {
		got, err := s.Get(ctx, task.ID)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		// A reader sees either the old state or the fully-applied new one.
		if got.Status == model.TaskStatusCompleted && (got.Result == nil || got.Result.Description != "done") {
			t.Fatal("observed a half-written result")
		}
	}
	<-done
}
