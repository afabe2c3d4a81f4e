package extract

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// frameExts are the image extensions a directory source will pick up.
var frameExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Source yields frames to the engines. Next blocks until a frame is
// available and returns io.EOF when the source is exhausted. Next must honor
// context cancellation; it is the only suspension point in the capture loop.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
}

// DirSource reads image files from a directory in lexical order. It stands
// in for a live camera in batch runs and tests.
type DirSource struct {
	paths []string
	pos   int
}

// NewDirSource lists the frame files in dir.
func NewDirSource(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frames dir: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if frameExts[strings.ToLower(filepath.Ext(entry.Name()))] {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("no frames found in %s", dir)
	}
	return &DirSource{paths: paths}, nil
}

// Len returns the number of frames the source holds.
func (s *DirSource) Len() int { return len(s.paths) }

// Next returns the next frame's bytes.
func (s *DirSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.paths) {
		return nil, io.EOF
	}
	data, err := os.ReadFile(s.paths[s.pos])
	if err != nil {
		return nil, fmt.Errorf("read frame %s: %w", s.paths[s.pos], err)
	}
	s.pos++
	return data, nil
}

// SliceSource serves in-memory frames. Test helper and building block for
// single-frame runs.
type SliceSource struct {
	frames [][]byte
	pos    int
}

// NewSliceSource wraps the given frames.
func NewSliceSource(frames ...[]byte) *SliceSource {
	return &SliceSource{frames: frames}
}

// Next returns the next frame or io.EOF.
func (s *SliceSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.frames) {
		return nil, io.EOF
	}
	frame := s.frames[s.pos]
	s.pos++
	return frame, nil
}
