// Package pipeline orchestrates one analysis run: acquire media, invoke
// the transcription and description-generation capabilities, merge their
// outputs and drive the task to a terminal state.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Tim-Alpha/video-description-api/internal/ingest"
	"github.com/Tim-Alpha/video-description-api/internal/media"
	"github.com/Tim-Alpha/video-description-api/internal/model"
	"github.com/Tim-Alpha/video-description-api/internal/store"
	ws "github.com/Tim-Alpha/video-description-api/internal/websocket"
)

// Transcriber is the external speech-to-text capability.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*model.Transcript, error)
}

// VisionAnalyzer describes sampled frames; its output feeds generation as
// visual context. Best effort; a video without usable frames still
// produces a result.
type VisionAnalyzer interface {
	AnalyzeFrames(ctx context.Context, framePaths []string) (string, error)
}

// Generator is the external description/keyword-generation capability.
type Generator interface {
	GenerateMetadata(ctx context.Context, transcript *model.Transcript, visualSummary string) (*model.AnalysisResult, error)
}

// Pipeline runs analysis tasks to completion. Safe for concurrent use;
// tasks are independent and share no state beyond the store.
type Pipeline struct {
	store       store.TaskStore
	ingestor    *ingest.Ingestor
	transcriber Transcriber
	vision      VisionAnalyzer
	generator   Generator
	hub         *ws.Hub

	callTimeout time.Duration
	frameCount  int
}

type Options struct {
	Store       store.TaskStore
	Ingestor    *ingest.Ingestor
	Transcriber Transcriber
	Vision      VisionAnalyzer
	Generator   Generator
	Hub         *ws.Hub

	// CallTimeout bounds each external-capability call so a hung provider
	// turns into a task error instead of an eternal processing state.
	CallTimeout time.Duration
	FrameCount  int
}

func New(opts Options) *Pipeline {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 120 * time.Second
	}
	if opts.FrameCount <= 0 {
		opts.FrameCount = 5
	}
	return &Pipeline{
		store:       opts.Store,
		ingestor:    opts.Ingestor,
		transcriber: opts.Transcriber,
		vision:      opts.Vision,
		generator:   opts.Generator,
		hub:         opts.Hub,
		callTimeout: opts.CallTimeout,
		frameCount:  opts.FrameCount,
	}
}

// Run processes a single task to a terminal state. The returned error
// reports the failure for logging; the task itself is already marked
// error by then, so callers must not retry.
func (p *Pipeline) Run(ctx context.Context, taskID string) error {
	task, err := p.store.Get(ctx, taskID)
	if err != nil {
		return fmt.Errorf("task lookup failed: %w", err)
	}
	if task.Status.Terminal() {
		// Duplicate delivery after a completed run.
		return nil
	}

	// A task already in processing was redelivered after a worker crash
	// or requeue; resume it instead of re-marking, which the state
	// machine would reject.
	if task.Status != model.TaskStatusProcessing {
		if err := p.store.UpdateStatus(ctx, taskID, model.TaskStatusProcessing, nil, ""); err != nil {
			return fmt.Errorf("failed to mark task processing: %w", err)
		}
	}
	p.progress(ctx, taskID, 5, "Preparing media")

	m, err := p.acquireMedia(ctx, task)
	if err != nil {
		return p.fail(ctx, taskID, err)
	}
	defer m.Release()

	result, err := p.analyze(ctx, taskID, m)
	if err != nil {
		return p.fail(ctx, taskID, err)
	}

	if err := p.store.UpdateStatus(ctx, taskID, model.TaskStatusCompleted, result, ""); err != nil {
		return fmt.Errorf("failed to complete task %s: %w", taskID, err)
	}
	p.hub.BroadcastComplete(taskID)
	return nil
}

// acquireMedia resolves the task source to a local handle. Uploads were
// persisted at submission time; URLs are fetched here.
func (p *Pipeline) acquireMedia(ctx context.Context, task *model.Task) (*ingest.Media, error) {
	if task.Source.URL != "" {
		fetchCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
		defer cancel()

		m, err := p.ingestor.FetchURL(fetchCtx, task.Source.URL)
		if err != nil {
			return nil, fmt.Errorf("error fetching video: %v", err)
		}
		return m, nil
	}

	if _, err := os.Stat(task.Source.FilePath); err != nil {
		return nil, fmt.Errorf("uploaded media is gone: %v", err)
	}
	return &ingest.Media{Path: task.Source.FilePath, Filename: task.Source.Filename}, nil
}

// analyze runs the two capability calls. The transcription branch and the
// visual-sampling branch are independent and run concurrently; generation
// needs the transcript and runs after both.
func (p *Pipeline) analyze(ctx context.Context, taskID string, m *ingest.Media) (*model.AnalysisResult, error) {
	scratch, err := os.MkdirTemp("", "analysis-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %v", err)
	}
	defer os.RemoveAll(scratch)

	var (
		transcript    *model.Transcript
		visualSummary string
		info          *media.Info
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		audioPath := filepath.Join(scratch, "audio.wav")
		p.progress(gctx, taskID, 20, "Extracting audio")
		if err := media.ExtractAudio(gctx, m.Path, audioPath); err != nil {
			// No ffmpeg or no separate audio track; the provider can
			// usually ingest the container directly.
			log.Printf("Audio extraction failed for task %s, using source media: %v", taskID, err)
			audioPath = m.Path
		}

		p.progress(gctx, taskID, 40, "Transcribing audio")
		callCtx, cancel := context.WithTimeout(gctx, p.callTimeout)
		defer cancel()

		t, err := p.transcriber.Transcribe(callCtx, audioPath)
		if err != nil {
			return fmt.Errorf("transcription failed: %v", err)
		}
		transcript = t
		return nil
	})

	g.Go(func() error {
		p.progress(gctx, taskID, 30, "Sampling video frames")

		var duration float64
		if probed, err := media.Probe(gctx, m.Path); err == nil {
			info = probed
			duration = probed.Duration
		}

		frames, err := media.ExtractFrames(gctx, m.Path, filepath.Join(scratch, "frames"), p.frameCount, duration)
		if err != nil || len(frames) == 0 {
			log.Printf("Frame sampling unavailable for task %s: %v", taskID, err)
			return nil
		}

		p.progress(gctx, taskID, 60, "Analyzing visual frames")
		callCtx, cancel := context.WithTimeout(gctx, p.callTimeout)
		defer cancel()

		summary, err := p.vision.AnalyzeFrames(callCtx, frames)
		if err != nil {
			log.Printf("Visual analysis failed for task %s, continuing without it: %v", taskID, err)
			return nil
		}
		visualSummary = summary
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.progress(ctx, taskID, 80, "Generating description")
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	result, err := p.generator.GenerateMetadata(callCtx, transcript, visualSummary)
	if err != nil {
		return nil, fmt.Errorf("description generation failed: %v", err)
	}

	result.Transcription = transcript
	if result.DurationEstimate == "" {
		result.DurationEstimate = durationEstimate(info, transcript)
	}
	result.Normalize()
	return result, nil
}

func (p *Pipeline) fail(ctx context.Context, taskID string, cause error) error {
	if err := p.store.UpdateStatus(ctx, taskID, model.TaskStatusError, nil, cause.Error()); err != nil {
		log.Printf("Failed to mark task %s as error: %v", taskID, err)
	}
	p.hub.BroadcastError(taskID, cause.Error())
	return fmt.Errorf("task %s failed: %w", taskID, cause)
}

func (p *Pipeline) progress(ctx context.Context, taskID string, progress int, step string) {
	if err := p.store.UpdateProgress(ctx, taskID, progress, step); err != nil {
		log.Printf("Failed to update progress for task %s: %v", taskID, err)
	}
	p.hub.BroadcastProgress(taskID, model.TaskStatusProcessing, progress, step)
}

// durationEstimate formats minutes:seconds from the best available source.
func durationEstimate(info *media.Info, transcript *model.Transcript) string {
	var seconds float64
	if info != nil && info.Duration > 0 {
		seconds = info.Duration
	} else if transcript != nil {
		seconds = transcript.Duration
	}
	if seconds <= 0 {
		return "0:00"
	}
	total := int(seconds + 0.5)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
