package source

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrTooLarge is returned when an input exceeds the configured size limit
var ErrTooLarge = errors.New("input exceeds size limit")

// ErrUnsupportedExtension is returned for names that are not .wav or .mp3
var ErrUnsupportedExtension = errors.New("unsupported file extension")

// supportedExtensions are the containers the audio loader decodes
var supportedExtensions = map[string]bool{
	".wav": true,
	".mp3": true,
}

// CheckExtension verifies that name ends in a supported audio extension
func CheckExtension(name string) error {
	ext := strings.ToLower(filepath.Ext(name))
	if !supportedExtensions[ext] {
		return fmt.Errorf("%w: %q (expected .wav or .mp3)", ErrUnsupportedExtension, ext)
	}
	return nil
}

// Staged is an audio file on local disk. Files created by Stage are owned
// and removed by Cleanup; local inputs are left alone.
type Staged struct {
	Path string
	Name string // original name or object key
	Size int64

	owned bool
	once  sync.Once
}

// Local wraps an existing file without taking ownership of it
func Local(path string) (*Staged, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &Staged{Path: path, Name: filepath.Base(path), Size: info.Size()}, nil
}

// Stage copies r into a new temporary file that keeps the extension of name.
// When maxBytes is positive, longer inputs fail with ErrTooLarge.
func Stage(r io.Reader, name string, maxBytes int64) (*Staged, error) {
	ext := strings.ToLower(filepath.Ext(name))

	f, err := os.CreateTemp("", "laugh-coach-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}

	n, err := io.Copy(f, src)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && maxBytes > 0 && n > maxBytes {
		err = fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}
	if err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("stage %s: %w", name, err)
	}

	return &Staged{Path: f.Name(), Name: name, Size: n, owned: true}, nil
}

// Cleanup removes a staged temporary file. Failures are logged, never
// returned, and repeated calls do nothing.
func (s *Staged) Cleanup(logger *slog.Logger) {
	if s == nil || !s.owned {
		return
	}
	s.once.Do(func() {
		if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			if logger == nil {
				logger = slog.Default()
			}
			logger.Warn("Failed to remove staged file",
				slog.String("path", s.Path),
				slog.String("error", err.Error()),
			)
		}
	})
}

// Owned reports whether Cleanup deletes the file
func (s *Staged) Owned() bool {
	return s.owned
}
