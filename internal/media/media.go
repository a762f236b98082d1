// Package media shells out to ffmpeg/ffprobe for audio extraction, frame
// sampling and probing. Callers must tolerate the binaries being absent
// and degrade to analyzing the raw media file.
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// Info holds the probed properties of a video file.
type Info struct {
	Duration float64
	Width    int
	Height   int
	Format   string
}

// Probe reads container-level metadata with ffprobe.
func Probe(ctx context.Context, path string) (*Info, error) {
	out, err := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	).Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probe struct {
		Format struct {
			Duration   string `json:"duration"`
			FormatName string `json:"format_name"`
		} `json:"format"`
		Streams []struct {
			CodecType string `json:"codec_type"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &Info{Format: probe.Format.FormatName}
	if probe.Format.Duration != "" {
		if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
			info.Duration = d
		}
	}
	for _, s := range probe.Streams {
		if s.CodecType == "video" {
			info.Width = s.Width
			info.Height = s.Height
			break
		}
	}
	return info, nil
}

// ExtractAudio writes the audio track as 16 kHz mono wav, the layout the
// transcription capability expects.
func ExtractAudio(ctx context.Context, videoPath, audioOut string) error {
	args := []string{"-y", "-i", videoPath, "-vn", "-ac", "1", "-ar", "16000", "-f", "wav", audioOut}
	return runFFmpeg(ctx, args)
}

// ExtractFrames samples count frames evenly across the video and writes
// them as jpegs under dir. Returns the written paths in order.
func ExtractFrames(ctx context.Context, videoPath, dir string, count int, duration float64) ([]string, error) {
	if count <= 0 {
		count = 5
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	// One frame every duration/count seconds; fall back to 1 fps when the
	// duration is unknown.
	fps := 1.0
	if duration > 0 {
		fps = float64(count) / duration
	}

	pattern := filepath.Join(dir, "frame-%03d.jpg")
	args := []string{
		"-y", "-i", videoPath,
		"-vf", fmt.Sprintf("fps=%f", fps),
		"-frames:v", strconv.Itoa(count),
		"-q:v", "3",
		pattern,
	}
	if err := runFFmpeg(ctx, args); err != nil {
		return nil, err
	}

	var frames []string
	for i := 1; i <= count; i++ {
		p := filepath.Join(dir, fmt.Sprintf("frame-%03d.jpg", i))
		if _, err := os.Stat(p); err == nil {
			frames = append(frames, p)
		}
	}
	return frames, nil
}

func runFFmpeg(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		tail := string(out)
		if len(tail) > 512 {
			tail = tail[len(tail)-512:]
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", err, tail)
	}
	return nil
}
