package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Tim-Alpha/video-description-api/internal/client"
	"github.com/Tim-Alpha/video-description-api/internal/ingest"
	"github.com/Tim-Alpha/video-description-api/internal/model"
	"github.com/Tim-Alpha/video-description-api/internal/store"
)

type fakeTranscriber struct {
	err error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath string) (*model.Transcript, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.Transcript{
		Text:     "hello world",
		Duration: 90,
		Segments: []model.TranscriptSegment{{Start: 0, End: 90, Text: "hello world"}},
	}, nil
}

type fakeVision struct{}

func (fakeVision) AnalyzeFrames(ctx context.Context, framePaths []string) (string, error) {
	return "a person talking to the camera", nil
}

type fakeGenerator struct {
	err error
}

func (f *fakeGenerator) GenerateMetadata(ctx context.Context, transcript *model.Transcript, visualSummary string) (*model.AnalysisResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	r := &model.AnalysisResult{
		Description: "a greeting video",
		Keywords:    []model.Keyword{{Keyword: "greeting", Weight: 9}},
		IsSafe:      true,
	}
	r.Normalize()
	return r, nil
}

type env struct {
	store    *store.MemoryStore
	pipeline *Pipeline
}

func newEnv(t *testing.T, tr Transcriber, gen Generator) *env {
	t.Helper()
	s := store.NewMemoryStore()
	ing, err := ingest.NewIngestor(t.TempDir(), 5*time.Second)
	if err != nil {
		t.Fatalf("ingestor: %v", err)
	}
	p := New(Options{
		Store:       s,
		Ingestor:    ing,
		Transcriber: tr,
		Vision:      fakeVision{},
		Generator:   gen,
		CallTimeout: 5 * time.Second,
	})
	return &env{store: s, pipeline: p}
}

func uploadTask(t *testing.T, s *store.MemoryStore) *model.Task {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("fake video"), 0o644); err != nil {
		t.Fatal(err)
	}
	task, err := s.Create(context.Background(), model.TaskSource{FilePath: path, Filename: "clip.mp4"}, "")
	if err != nil {
		t.Fatal(err)
	}
	return task
}

func TestRun_UploadSuccess(t *testing.T) {
	e := newEnv(t, &fakeTranscriber{}, &fakeGenerator{})
	task := uploadTask(t, e.store)

	if err := e.pipeline.Run(context.Background(), task.ID); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	got, _ := e.store.Get(context.Background(), task.ID)
	if got.Status != model.TaskStatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", got.Status, got.ErrorMessage)
	}
	if got.Result == nil {
		t.Fatal("expected a result bundle")
	}
	if got.Result.Description != "a greeting video" {
		t.Errorf("unexpected description %q", got.Result.Description)
	}
	if got.Result.Transcription == nil || got.Result.Transcription.Text != "hello world" {
		t.Errorf("transcript not merged into result: %+v", got.Result.Transcription)
	}
	if got.Result.DurationEstimate != "1:30" {
		t.Errorf("expected duration estimate 1:30, got %q", got.Result.DurationEstimate)
	}
	if got.Progress != 100 {
		t.Errorf("expected progress 100, got %d", got.Progress)
	}
	if got.ErrorMessage != "" {
		t.Errorf("error_message must be absent, got %q", got.ErrorMessage)
	}

	// The temporary upload is released once processing finishes.
	if _, err := os.Stat(task.Source.FilePath); !os.IsNotExist(err) {
		t.Error("expected uploaded media to be cleaned up")
	}
}

func TestRun_URLSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("remote video"))
	}))
	defer srv.Close()

	e := newEnv(t, &fakeTranscriber{}, &fakeGenerator{})
	task, _ := e.store.Create(context.Background(), model.TaskSource{URL: srv.URL + "/v.mp4"}, "share-1")

	if err := e.pipeline.Run(context.Background(), task.ID); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	got, _ := e.store.Get(context.Background(), task.ID)
	if got.Status != model.TaskStatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", got.Status, got.ErrorMessage)
	}
	if got.Identifier != "share-1" {
		t.Errorf("identifier lost: %q", got.Identifier)
	}
}

func TestRun_FetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	e := newEnv(t, &fakeTranscriber{}, &fakeGenerator{})
	task, _ := e.store.Create(context.Background(), model.TaskSource{URL: srv.URL + "/gone.mp4"}, "")

	if err := e.pipeline.Run(context.Background(), task.ID); err == nil {
		t.Fatal("expected a run error")
	}

	got, _ := e.store.Get(context.Background(), task.ID)
	if got.Status != model.TaskStatusError {
		t.Fatalf("expected error status, got %s", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Error("expected an error message")
	}
	if got.Result != nil {
		t.Error("result must be absent on errored task")
	}
}

func TestRun_TranscriptionFailureIsTerminal(t *testing.T) {
	e := newEnv(t, &fakeTranscriber{err: errors.New("provider unavailable")}, &fakeGenerator{})
	task := uploadTask(t, e.store)

	if err := e.pipeline.Run(context.Background(), task.ID); err == nil {
		t.Fatal("expected a run error")
	}

	got, _ := e.store.Get(context.Background(), task.ID)
	if got.Status != model.TaskStatusError {
		t.Fatalf("expected error status, got %s", got.Status)
	}
	if got.Status == model.TaskStatusCompleted {
		t.Fatal("a task with failed transcription must never complete")
	}
}

func TestRun_GenerationFailureIsTerminal(t *testing.T) {
	e := newEnv(t, &fakeTranscriber{}, &fakeGenerator{err: errors.New("model overloaded")})
	task := uploadTask(t, e.store)

	if err := e.pipeline.Run(context.Background(), task.ID); err == nil {
		t.Fatal("expected a run error")
	}

	got, _ := e.store.Get(context.Background(), task.ID)
	if got.Status != model.TaskStatusError {
		t.Fatalf("expected error status, got %s", got.Status)
	}
}

func TestRun_DuplicateDeliveryIsNoOp(t *testing.T) {
	e := newEnv(t, &fakeTranscriber{}, &fakeGenerator{})
	task := uploadTask(t, e.store)

	if err := e.pipeline.Run(context.Background(), task.ID); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	first, _ := e.store.Get(context.Background(), task.ID)

	if err := e.pipeline.Run(context.Background(), task.ID); err != nil {
		t.Fatalf("second delivery must be a no-op, got %v", err)
	}
	second, _ := e.store.Get(context.Background(), task.ID)
	if second.Status != first.Status || second.CompletedAt == nil || !second.CompletedAt.Equal(*first.CompletedAt) {
		t.Error("duplicate delivery mutated a terminal task")
	}
}

// A worker crash or queue requeue redelivers a task that is already in
// processing; the run must resume it rather than abandon it there.
func TestRun_ResumesProcessingTask(t *testing.T) {
	e := newEnv(t, &fakeTranscriber{}, &fakeGenerator{})
	task := uploadTask(t, e.store)

	if err := e.store.UpdateStatus(context.Background(), task.ID, model.TaskStatusProcessing, nil, ""); err != nil {
		t.Fatal(err)
	}

	if err := e.pipeline.Run(context.Background(), task.ID); err != nil {
		t.Fatalf("redelivered processing task must resume, got %v", err)
	}

	got, _ := e.store.Get(context.Background(), task.ID)
	if got.Status != model.TaskStatusCompleted {
		t.Fatalf("expected completed after resume, got %s (%s)", got.Status, got.ErrorMessage)
	}
}

func TestRun_UnknownTask(t *testing.T) {
	e := newEnv(t, &fakeTranscriber{}, &fakeGenerator{})
	if err := e.pipeline.Run(context.Background(), "no-such-task"); err == nil {
		t.Fatal("expected an error for unknown task")
	}
}

// The unconfigured OpenAI client serves deterministic mocks, so a full run
// works offline end to end.
func TestRun_WithUnconfiguredProvider(t *testing.T) {
	ai := client.NewOpenAIClient(client.OpenAIOptions{})
	if ai.IsConfigured() {
		t.Fatal("client without key must be unconfigured")
	}

	s := store.NewMemoryStore()
	ing, _ := ingest.NewIngestor(t.TempDir(), 5*time.Second)
	p := New(Options{
		Store:       s,
		Ingestor:    ing,
		Transcriber: ai,
		Vision:      ai,
		Generator:   ai,
		CallTimeout: 5 * time.Second,
	})

	task := uploadTask(t, s)
	if err := p.Run(context.Background(), task.ID); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	got, _ := s.Get(context.Background(), task.ID)
	if got.Status != model.TaskStatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", got.Status, got.ErrorMessage)
	}
	if len(got.Result.Keywords) < 5 {
		t.Errorf("mock result should carry at least 5 keywords, got %d", len(got.Result.Keywords))
	}
	if got.Result.Transcription == nil || len(got.Result.Transcription.Segments) == 0 {
		t.Error("mock transcript segments missing")
	}
}
