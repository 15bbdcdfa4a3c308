package coach

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/skypro1111/laugh-coach/internal/analysis"
	"github.com/skypro1111/laugh-coach/internal/audio"
	"github.com/skypro1111/laugh-coach/internal/feedback"
	"github.com/skypro1111/laugh-coach/internal/metrics"
	"github.com/skypro1111/laugh-coach/internal/remote"
	"github.com/skypro1111/laugh-coach/internal/rules"
	"github.com/skypro1111/laugh-coach/internal/source"
)

// Transcriber turns an audio file into text
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// WaveformTranscriber is implemented by transcribers that accept decoded audio
type WaveformTranscriber interface {
	TranscribeWaveform(ctx context.Context, w *audio.Waveform) (string, error)
}

// FeedbackGenerator critiques joke text
type FeedbackGenerator interface {
	Generate(ctx context.Context, joke string) (string, error)
}

// Options configures a Coach
type Options struct {
	Loader      *audio.Loader
	Analyzer    *analysis.Analyzer
	Thresholds  rules.Thresholds
	Transcriber Transcriber
	Feedback    FeedbackGenerator
	Resolver    *source.Resolver // nil allows local paths only

	TranscribeTimeout time.Duration
	FeedbackTimeout   time.Duration
	SendDecoded       bool  // send the decoded waveform instead of the original file
	MaxUploadBytes    int64 // zero for no limit

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Coach runs the coaching pipeline for jokes and recordings.
// It is safe for concurrent use.
type Coach struct {
	opts    Options
	closers []io.Closer
	logger  *slog.Logger
}

// Stats aggregates pipeline statistics
type Stats struct {
	Analyzer      analysis.AnalyzerStats `json:"analyzer"`
	Transcription *remote.ClientStats    `json:"transcription,omitempty"`
	Feedback      *remote.ClientStats    `json:"feedback,omitempty"`
}

// New creates a coach from opts
func New(opts Options) (*Coach, error) {
	if opts.Loader == nil {
		return nil, errors.New("audio loader is required")
	}
	if opts.Analyzer == nil {
		return nil, errors.New("analyzer is required")
	}
	if opts.Transcriber == nil {
		return nil, errors.New("transcriber is required")
	}
	if opts.Feedback == nil {
		return nil, errors.New("feedback generator is required")
	}
	if err := opts.Thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid thresholds: %w", err)
	}
	if opts.Resolver == nil {
		opts.Resolver = source.NewResolver(nil, opts.Logger)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Coach{opts: opts, logger: opts.Logger}, nil
}

// JokeFeedback returns the critique of a joke submitted as text
func (c *Coach) JokeFeedback(ctx context.Context, joke string) (string, error) {
	if strings.TrimSpace(joke) == "" {
		return "", feedback.ErrEmptyJoke
	}

	c.opts.Metrics.RecordJoke()
	return c.critique(ctx, joke)
}

// AnalyzeAudio coaches the recording at ref, a local path or s3://bucket/key.
// Only input and decode failures are returned; stage failures are recorded
// in the report.
func (c *Coach) AnalyzeAudio(ctx context.Context, ref string) (*Report, error) {
	staged, err := c.opts.Resolver.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer staged.Cleanup(c.logger)

	return c.analyzeStaged(ctx, staged)
}

// AnalyzeUpload coaches a recording read from r. name must carry a .wav or
// .mp3 extension.
func (c *Coach) AnalyzeUpload(ctx context.Context, r io.Reader, name string) (*Report, error) {
	if err := source.CheckExtension(name); err != nil {
		return nil, err
	}

	staged, err := source.Stage(r, name, c.opts.MaxUploadBytes)
	if err != nil {
		return nil, err
	}
	defer staged.Cleanup(c.logger)

	return c.analyzeStaged(ctx, staged)
}

// Measure computes delivery metrics and tips for a local file without
// calling any external service
func (c *Coach) Measure(path string) (*Delivery, *audio.SourceInfo, error) {
	w, info, err := c.load(path)
	if err != nil {
		return nil, nil, err
	}

	delivery, err := c.deliver(w)
	if err != nil {
		return nil, info, err
	}
	return delivery, info, nil
}

func (c *Coach) analyzeStaged(ctx context.Context, staged *source.Staged) (*Report, error) {
	w, info, err := c.load(staged.Path)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RequestID: uuid.NewString(),
		Source:    info,
	}

	logger := c.logger.With(slog.String("request_id", report.RequestID))
	logger.Info("Analyzing recording",
		slog.String("name", staged.Name),
		slog.Int64("size_bytes", staged.Size),
		slog.Float64("duration_seconds", w.Duration()),
	)

	var (
		wg          sync.WaitGroup
		delivery    *Delivery
		analysisErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		delivery, analysisErr = c.deliver(w)
	}()
	go func() {
		defer wg.Done()
		c.transcribeAndCritique(ctx, staged.Path, w, report, logger)
	}()
	wg.Wait()

	if analysisErr != nil {
		report.MetricsError = analysisErr.Error()
	} else {
		report.Delivery = delivery
	}

	logger.Info("Recording analyzed",
		slog.Bool("metrics", report.Delivery != nil),
		slog.Bool("transcript", report.TranscriptError == ""),
		slog.Bool("feedback", report.FeedbackError == ""),
	)

	return report, nil
}

// load decodes path and records decode failures
func (c *Coach) load(path string) (*audio.Waveform, *audio.SourceInfo, error) {
	w, info, err := c.opts.Loader.Load(path)
	if err != nil {
		c.opts.Metrics.RecordAnalysisFailure(metrics.OutcomeDecodeError)
		return nil, nil, err
	}
	return w, info, nil
}

// deliver runs the analyzer and the threshold rules
func (c *Coach) deliver(w *audio.Waveform) (*Delivery, error) {
	start := time.Now()

	m, err := c.opts.Analyzer.Analyze(w)
	if err != nil {
		c.opts.Metrics.RecordAnalysisFailure(metrics.OutcomeAnalysisError)
		return nil, err
	}
	c.opts.Metrics.RecordAnalysis(time.Since(start), m.DurationSeconds, m.WordsPerMinute, m.NumPauses, m.NormalizedLoudness)

	tips := rules.Evaluate(m, c.opts.Thresholds)
	for _, tip := range tips {
		c.opts.Metrics.RecordTip(tip.Code)
	}

	return &Delivery{
		Metrics: m,
		Tips:    tips,
		Scores:  rules.Score(m),
	}, nil
}

// transcribeAndCritique fills the transcript and feedback fields of report.
// Feedback is only requested for a non-empty transcript.
func (c *Coach) transcribeAndCritique(ctx context.Context, path string, w *audio.Waveform, report *Report, logger *slog.Logger) {
	transcript, err := c.transcribe(ctx, path, w)
	if err != nil {
		logger.Warn("Transcription failed", slog.String("error", err.Error()))
		report.TranscriptError = transcriptionFailure(err)
		report.FeedbackError = NoTranscriptMessage
		return
	}

	report.Transcript = transcript
	if strings.TrimSpace(transcript) == "" {
		report.FeedbackError = NoTranscriptMessage
		return
	}

	critique, err := c.critique(ctx, transcript)
	if err != nil {
		logger.Warn("Feedback generation failed", slog.String("error", err.Error()))
		report.FeedbackError = err.Error()
		return
	}
	report.Feedback = critique
}

func (c *Coach) transcribe(ctx context.Context, path string, w *audio.Waveform) (string, error) {
	ctx, cancel := withTimeout(ctx, c.opts.TranscribeTimeout)
	defer cancel()

	if c.opts.SendDecoded {
		if wt, ok := c.opts.Transcriber.(WaveformTranscriber); ok {
			return wt.TranscribeWaveform(ctx, w)
		}
	}
	return c.opts.Transcriber.Transcribe(ctx, path)
}

func (c *Coach) critique(ctx context.Context, text string) (string, error) {
	ctx, cancel := withTimeout(ctx, c.opts.FeedbackTimeout)
	defer cancel()

	return c.opts.Feedback.Generate(ctx, text)
}

// GetStats returns analyzer and remote client statistics
func (c *Coach) GetStats() Stats {
	stats := Stats{Analyzer: c.opts.Analyzer.GetStats()}

	if p, ok := c.opts.Transcriber.(interface {
		Stats() (remote.ClientStats, bool)
	}); ok {
		if s, ok := p.Stats(); ok {
			stats.Transcription = &s
		}
	}

	if g, ok := c.opts.Feedback.(interface{ GetStats() remote.ClientStats }); ok {
		s := g.GetStats()
		stats.Feedback = &s
	}

	return stats
}

// Close releases the remote clients owned by the coach
func (c *Coach) Close() error {
	var errs []error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
