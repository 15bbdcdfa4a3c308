package audio

import (
	"errors"
	"fmt"
)

// Waveform is a mono signal with samples normalized to roughly [-1, 1].
type Waveform struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the waveform length in seconds
func (w *Waveform) Duration() float64 {
	if w == nil || w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// SourceInfo describes the decoded input before resampling
type SourceInfo struct {
	Format     Format  `json:"format"`
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Precision  int     `json:"precision_bytes"`
	SizeBytes  int     `json:"size_bytes"`
	Duration   float64 `json:"duration_seconds"`
}

// ErrUnsupportedFormat is wrapped by DecodeError when the container is not recognized
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// DecodeError reports an input that could not be turned into a waveform.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("decode audio: %v", e.Err)
	}
	return fmt.Sprintf("decode audio %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
