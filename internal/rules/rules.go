package rules

import (
	"fmt"
	"math"

	"github.com/skypro1111/laugh-coach/internal/analysis"
)

// Tip codes are stable identifiers for clients that localize or group tips
const (
	CodePaceSlow         = "pace_slow"
	CodePaceFast         = "pace_fast"
	CodePausesFew        = "pauses_few"
	CodePausesMany       = "pauses_many"
	CodeProjectionWeak   = "projection_weak"
	CodeProjectionStrong = "projection_strong"
)

// Tip is one piece of delivery advice
type Tip struct {
	Code    string `json:"code"`
	Summary string `json:"summary"`
	Message string `json:"message"`
}

var tips = map[string]Tip{
	CodePaceSlow: {
		Code:    CodePaceSlow,
		Summary: "pace is slow",
		Message: "Your speaking rate is relatively slow. Consider picking up the pace to keep the audience engaged.",
	},
	CodePaceFast: {
		Code:    CodePaceFast,
		Summary: "pace is fast",
		Message: "You're speaking quite fast. Try slowing down a bit to give your audience time to process the joke.",
	},
	CodePausesFew: {
		Code:    CodePausesFew,
		Summary: "add more pauses",
		Message: "You could benefit from adding more strategic pauses to build tension and emphasize punchlines.",
	},
	CodePausesMany: {
		Code:    CodePausesMany,
		Summary: "too many pauses",
		Message: "You have frequent pauses. Consider making your delivery more fluid while keeping pauses for emphasis.",
	},
	CodeProjectionWeak: {
		Code:    CodeProjectionWeak,
		Summary: "projection weak",
		Message: "Your voice projection could be stronger. Try speaking with more confidence and volume.",
	},
	CodeProjectionStrong: {
		Code:    CodeProjectionStrong,
		Summary: "projection very strong",
		Message: "Your voice projection is very strong. Ensure you're not overwhelming, but great energy!",
	},
}

// Thresholds are the cut-offs the delivery rules compare against
type Thresholds struct {
	SlowWPM               float64
	FastWPM               float64
	FewPauses             int
	FewPausesMinDuration  float64 // seconds
	ManyPauses            int
	ManyPausesMaxDuration float64 // seconds
	WeakLoudness          float64
	StrongLoudness        float64
}

// DefaultThresholds returns the stock coaching thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{
		SlowWPM:               120,
		FastWPM:               180,
		FewPauses:             3,
		FewPausesMinDuration:  15,
		ManyPauses:            10,
		ManyPausesMaxDuration: 60,
		WeakLoudness:          40,
		StrongLoudness:        80,
	}
}

// Validate checks the thresholds are ordered
func (th Thresholds) Validate() error {
	if th.SlowWPM < 0 || th.FastWPM <= th.SlowWPM {
		return fmt.Errorf("pace thresholds must satisfy 0 <= slow < fast, got %v and %v", th.SlowWPM, th.FastWPM)
	}

	if th.FewPauses < 0 || th.ManyPauses < th.FewPauses {
		return fmt.Errorf("pause thresholds must satisfy 0 <= few <= many, got %d and %d", th.FewPauses, th.ManyPauses)
	}

	if th.WeakLoudness < 0 || th.StrongLoudness > 100 || th.StrongLoudness <= th.WeakLoudness {
		return fmt.Errorf("loudness thresholds must satisfy 0 <= weak < strong <= 100, got %v and %v", th.WeakLoudness, th.StrongLoudness)
	}

	return nil
}

// Evaluate returns the delivery tips for m in a fixed order: pace, pauses,
// projection. At most one tip is produced per group.
func Evaluate(m analysis.DeliveryMetrics, th Thresholds) []Tip {
	out := make([]Tip, 0, 3)

	switch {
	case m.WordsPerMinute < th.SlowWPM:
		out = append(out, tips[CodePaceSlow])
	case m.WordsPerMinute > th.FastWPM:
		out = append(out, tips[CodePaceFast])
	}

	switch {
	case m.NumPauses < th.FewPauses && m.DurationSeconds > th.FewPausesMinDuration:
		out = append(out, tips[CodePausesFew])
	case m.NumPauses > th.ManyPauses && m.DurationSeconds < th.ManyPausesMaxDuration:
		out = append(out, tips[CodePausesMany])
	}

	switch {
	case m.NormalizedLoudness < th.WeakLoudness:
		out = append(out, tips[CodeProjectionWeak])
	case m.NormalizedLoudness > th.StrongLoudness:
		out = append(out, tips[CodeProjectionStrong])
	}

	return out
}

// Scores puts the delivery metrics on a shared 0-100 scale for charting
type Scores struct {
	SpeakingRate    float64 `json:"speaking_rate"`
	Pauses          float64 `json:"pauses"`
	VoiceProjection float64 `json:"voice_projection"`
}

// Score maps pace against 200 wpm and pauses at ten points each
func Score(m analysis.DeliveryMetrics) Scores {
	clip := func(v float64) float64 {
		return math.Max(0, math.Min(100, v))
	}

	return Scores{
		SpeakingRate:    clip(m.WordsPerMinute / 2),
		Pauses:          clip(float64(m.NumPauses) * 10),
		VoiceProjection: clip(m.NormalizedLoudness),
	}
}
