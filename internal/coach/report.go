package coach

import (
	"errors"

	"github.com/skypro1111/laugh-coach/internal/analysis"
	"github.com/skypro1111/laugh-coach/internal/audio"
	"github.com/skypro1111/laugh-coach/internal/rules"
	"github.com/skypro1111/laugh-coach/internal/transcription"
)

// Messages shown in place of a transcript that could not be produced
const (
	TranscriptionErrorPrefix = "Transcription error: "
	ModelUnavailableMessage  = "Failed to load transcription model"
	NoTranscriptMessage      = "no transcript to critique"
)

// Delivery holds the local analysis of a recording
type Delivery struct {
	Metrics analysis.DeliveryMetrics `json:"metrics"`
	Tips    []rules.Tip              `json:"tips"`
	Scores  rules.Scores             `json:"scores"`
}

// Report is the outcome of coaching one recording. Each stage reports its
// own failure so a report may be partial.
type Report struct {
	RequestID       string            `json:"request_id"`
	Source          *audio.SourceInfo `json:"source,omitempty"`
	Transcript      string            `json:"transcript"`
	TranscriptError string            `json:"transcript_error,omitempty"`
	Feedback        string            `json:"feedback,omitempty"`
	FeedbackError   string            `json:"feedback_error,omitempty"`
	Delivery        *Delivery         `json:"delivery,omitempty"`
	MetricsError    string            `json:"metrics_error,omitempty"`
}

// transcriptionFailure returns the message reported instead of a transcript
func transcriptionFailure(err error) string {
	if errors.Is(err, transcription.ErrUnavailable) {
		return ModelUnavailableMessage
	}
	return TranscriptionErrorPrefix + err.Error()
}
