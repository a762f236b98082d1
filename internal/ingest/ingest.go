// Package ingest normalizes an uploaded stream or a remote URL into a
// single local media handle the pipeline can operate on uniformly.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// ErrFetch marks remote media that could not be retrieved (network error,
// non-2xx status, timeout).
var ErrFetch = errors.New("failed to fetch remote media")

// Media is a local, readable handle on the submitted video. Release must
// be called once processing finishes, on success and failure paths alike.
type Media struct {
	Path     string
	Filename string
	Size     int64
}

// Release removes the temporary file backing the media.
func (m *Media) Release() {
	if m == nil || m.Path == "" {
		return
	}
	_ = os.Remove(m.Path)
}

// Ingestor persists submitted media under a scratch directory for the
// duration of processing.
type Ingestor struct {
	dir        string
	httpClient *http.Client
}

func NewIngestor(dir string, fetchTimeout time.Duration) (*Ingestor, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media dir: %w", err)
	}
	return &Ingestor{
		dir:        dir,
		httpClient: &http.Client{Timeout: fetchTimeout},
	}, nil
}

// SaveUpload persists an uploaded byte stream. The file only needs to be
// addressable for the duration of processing.
func (i *Ingestor) SaveUpload(r io.Reader, filename string) (*Media, error) {
	f, err := os.CreateTemp(i.dir, "upload-*"+sanitizeExt(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	size, err := io.Copy(f, r)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("failed to persist upload: %w", err)
	}

	return &Media{Path: f.Name(), Filename: filename, Size: size}, nil
}

// FetchURL downloads the remote resource and persists it locally before
// handoff to the pipeline.
func (i *Ingestor) FetchURL(ctx context.Context, url string) (*Media, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrFetch, resp.StatusCode)
	}

	name := filepath.Base(req.URL.Path)
	media, err := i.SaveUpload(resp.Body, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return media, nil
}

// sanitizeExt keeps the original extension, if any, so downstream tools
// can sniff the container format from the name.
func sanitizeExt(filename string) string {
	ext := filepath.Ext(filepath.Base(filename))
	if len(ext) > 8 {
		return ""
	}
	return ext
}
