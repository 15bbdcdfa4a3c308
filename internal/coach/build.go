package coach

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/skypro1111/laugh-coach/internal/analysis"
	"github.com/skypro1111/laugh-coach/internal/audio"
	"github.com/skypro1111/laugh-coach/internal/config"
	"github.com/skypro1111/laugh-coach/internal/feedback"
	"github.com/skypro1111/laugh-coach/internal/metrics"
	"github.com/skypro1111/laugh-coach/internal/remote"
	"github.com/skypro1111/laugh-coach/internal/rules"
	"github.com/skypro1111/laugh-coach/internal/source"
	"github.com/skypro1111/laugh-coach/internal/transcription"
)

// defaultRetryBackoff is the first retry delay of both remote clients
const defaultRetryBackoff = time.Second

// Build wires a coach from the service configuration. Missing API keys do
// not fail the build: the affected stage reports its error per request.
// m may be nil.
func Build(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*Coach, error) {
	if logger == nil {
		logger = slog.Default()
	}

	loader, err := audio.NewLoader(cfg.Audio.SampleRate, cfg.Audio.ResampleQuality, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio loader: %w", err)
	}

	analyzer, err := analysis.NewAnalyzer(AnalysisParams(cfg.Analysis), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}

	provider := transcription.NewProvider(transcription.Config{
		Endpoint:      cfg.Transcription.Endpoint,
		APIKey:        cfg.Transcription.APIKey,
		Model:         cfg.Transcription.Model,
		Language:      cfg.Transcription.Language,
		Timeout:       cfg.Transcription.GetTimeoutDuration(),
		MaxRetries:    cfg.Transcription.MaxRetries,
		MaxConcurrent: cfg.Transcription.MaxConcurrent,
		RetryBackoff:  defaultRetryBackoff,
		Observer:      observer(m),
		Logger:        logger,
	})
	closers := []io.Closer{provider}

	var generator FeedbackGenerator
	feedbackClient, err := feedback.NewClient(feedback.Config{
		Endpoint:      cfg.Feedback.Endpoint,
		APIKey:        cfg.Feedback.APIKey,
		Model:         cfg.Feedback.Model,
		Temperature:   cfg.Feedback.Temperature,
		Timeout:       cfg.Feedback.GetTimeoutDuration(),
		MaxRetries:    cfg.Feedback.MaxRetries,
		MaxConcurrent: cfg.Feedback.MaxConcurrent,
		RetryBackoff:  defaultRetryBackoff,
		Observer:      observer(m),
		Logger:        logger,
	})
	if err != nil {
		logger.Warn("Feedback generator unavailable", slog.String("error", err.Error()))
		generator = feedback.Unavailable{Err: err}
	} else {
		generator = feedbackClient
		closers = append(closers, feedbackClient)
	}

	var fetcher *source.S3Fetcher
	if cfg.S3.IsConfigured() {
		fetcher, err = source.NewS3Fetcher(source.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Timeout:         cfg.S3.GetTimeoutDuration(),
		}, cfg.HTTP.GetMaxUploadBytes(), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 fetcher: %w", err)
		}
	}

	c, err := New(Options{
		Loader:            loader,
		Analyzer:          analyzer,
		Thresholds:        Thresholds(cfg.Rules),
		Transcriber:       provider,
		Feedback:          generator,
		Resolver:          source.NewResolver(fetcher, logger),
		TranscribeTimeout: cfg.Transcription.GetTimeoutDuration(),
		FeedbackTimeout:   cfg.Feedback.GetTimeoutDuration(),
		SendDecoded:       cfg.Transcription.SendDecoded,
		MaxUploadBytes:    cfg.HTTP.GetMaxUploadBytes(),
		Metrics:           m,
		Logger:            logger,
	})
	if err != nil {
		return nil, err
	}
	c.closers = closers

	return c, nil
}

// observer keeps a nil *metrics.Metrics out of the remote.Observer interface
func observer(m *metrics.Metrics) remote.Observer {
	if m == nil {
		return nil
	}
	return m
}

// AnalysisParams converts the analysis config section
func AnalysisParams(a config.AnalysisConfig) analysis.Params {
	return analysis.Params{
		FrameLength:   a.FrameLength,
		HopLength:     a.HopLength,
		MelBands:      a.MelBands,
		OnsetsPerWord: a.OnsetsPerWord,
		TopDB:         a.TopDB,
		LoudnessScale: a.LoudnessScale,
		Peaks: analysis.PeakParams{
			Delta:   a.OnsetDelta,
			PreMax:  a.PreMax,
			PostMax: a.PostMax,
			PreAvg:  a.PreAvg,
			PostAvg: a.PostAvg,
			Wait:    a.Wait,
		},
	}
}

// Thresholds converts the rules config section
func Thresholds(r config.RulesConfig) rules.Thresholds {
	return rules.Thresholds{
		SlowWPM:               r.SlowWPM,
		FastWPM:               r.FastWPM,
		FewPauses:             r.FewPauses,
		FewPausesMinDuration:  r.FewPausesMinDuration,
		ManyPauses:            r.ManyPauses,
		ManyPausesMaxDuration: r.ManyPausesMaxDuration,
		WeakLoudness:          r.WeakLoudness,
		StrongLoudness:        r.StrongLoudness,
	}
}
