package analysis

import (
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/skypro1111/laugh-coach/internal/audio"
	"github.com/skypro1111/laugh-coach/internal/vad"
)

// DeliveryMetrics is the numeric summary of one recorded performance
type DeliveryMetrics struct {
	DurationSeconds    float64 `json:"duration_seconds"`
	WordsPerMinute     float64 `json:"words_per_minute"`
	NumPauses          int     `json:"num_pauses"`
	NormalizedLoudness float64 `json:"normalized_loudness"`
}

// Analyzer measures pace, pauses and loudness of a waveform.
// It is safe for concurrent use.
type Analyzer struct {
	params   Params
	onsets   *onsetDetector
	splitter *vad.Splitter
	logger   *slog.Logger

	// Statistics
	analyzed atomic.Uint64
	failed   atomic.Uint64
}

// AnalyzerStats represents analyzer statistics
type AnalyzerStats struct {
	Analyzed uint64            `json:"analyzed"`
	Failed   uint64            `json:"failed"`
	Splitter vad.SplitterStats `json:"splitter"`
}

// NewAnalyzer creates an analyzer with the given parameters
func NewAnalyzer(params Params, logger *slog.Logger) (*Analyzer, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis parameters: %w", err)
	}

	splitter, err := vad.NewSplitter(params.TopDB, params.FrameLength, params.HopLength)
	if err != nil {
		return nil, fmt.Errorf("failed to create silence splitter: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Analyzer{
		params:   params,
		onsets:   newOnsetDetector(params.FrameLength, params.HopLength, params.MelBands),
		splitter: splitter,
		logger:   logger,
	}, nil
}

// Params returns the parameters the analyzer was built with
func (a *Analyzer) Params() Params {
	return a.params
}

// Analyze computes delivery metrics for w. The waveform is not modified.
func (a *Analyzer) Analyze(w *audio.Waveform) (m DeliveryMetrics, err error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = &AnalysisError{Reason: "internal failure", Err: fmt.Errorf("panic: %v", r)}
		}
		if err != nil {
			a.failed.Add(1)
			a.logger.Warn("Delivery analysis failed", slog.String("error", err.Error()))
			return
		}
		a.analyzed.Add(1)
		a.logger.Debug("Delivery analysis completed",
			slog.Float64("duration_seconds", m.DurationSeconds),
			slog.Float64("words_per_minute", m.WordsPerMinute),
			slog.Int("num_pauses", m.NumPauses),
			slog.Float64("normalized_loudness", m.NormalizedLoudness),
			slog.Duration("elapsed", time.Since(start)),
		)
	}()

	if err := checkWaveform(w); err != nil {
		return DeliveryMetrics{}, err
	}

	duration := w.Duration()

	env := a.onsets.Envelope(w.Samples, w.SampleRate)
	onsets := pickPeaks(env, w.SampleRate, a.params.HopLength, a.params.Peaks)

	m = DeliveryMetrics{
		DurationSeconds:    duration,
		WordsPerMinute:     wordsPerMinute(len(onsets), a.params.OnsetsPerWord, duration),
		NumPauses:          a.splitter.CountPauses(w.Samples),
		NormalizedLoudness: normalizedLoudness(w.Samples, a.params),
	}

	if err := checkFinite(m); err != nil {
		return DeliveryMetrics{}, err
	}

	return m, nil
}

// GetStats returns analyzer statistics
func (a *Analyzer) GetStats() AnalyzerStats {
	return AnalyzerStats{
		Analyzed: a.analyzed.Load(),
		Failed:   a.failed.Load(),
		Splitter: a.splitter.GetStats(),
	}
}

func checkWaveform(w *audio.Waveform) error {
	switch {
	case w == nil:
		return &AnalysisError{Reason: "no waveform"}
	case w.SampleRate <= 0:
		return &AnalysisError{Reason: fmt.Sprintf("invalid sample rate %d", w.SampleRate)}
	case len(w.Samples) == 0:
		return &AnalysisError{Reason: "empty waveform"}
	}

	for i, s := range w.Samples {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return &AnalysisError{Reason: fmt.Sprintf("non-finite sample at index %d", i)}
		}
	}

	return nil
}

func checkFinite(m DeliveryMetrics) error {
	for name, v := range map[string]float64{
		"duration_seconds":    m.DurationSeconds,
		"words_per_minute":    m.WordsPerMinute,
		"normalized_loudness": m.NormalizedLoudness,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &AnalysisError{Reason: fmt.Sprintf("%s is not finite", name)}
		}
	}
	return nil
}

// wordsPerMinute converts an onset count into an approximate speaking rate
func wordsPerMinute(onsets int, onsetsPerWord, duration float64) float64 {
	if duration <= 0 || onsetsPerWord <= 0 {
		return 0
	}
	words := float64(onsets) / onsetsPerWord
	return words / duration * 60
}

// normalizedLoudness scales the mean frame RMS into [0, 100].
// It is a relative score, not a calibrated loudness.
func normalizedLoudness(samples []float64, p Params) float64 {
	rms := vad.FrameRMS(samples, p.FrameLength, p.HopLength)
	if len(rms) == 0 {
		return 0
	}

	var sum float64
	for _, v := range rms {
		sum += v
	}
	score := sum / float64(len(rms)) * p.LoudnessScale

	return math.Max(0, math.Min(100, score))
}
