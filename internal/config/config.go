package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	Audio         AudioConfig         `yaml:"audio"`
	Analysis      AnalysisConfig      `yaml:"analysis"`
	Rules         RulesConfig         `yaml:"rules"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Feedback      FeedbackConfig      `yaml:"feedback"`
	S3            S3Config            `yaml:"s3"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port           int    `yaml:"port"`
	Address        string `yaml:"address"`
	MaxUploadMB    int    `yaml:"max_upload_mb"`
	RequestTimeout int    `yaml:"request_timeout"` // seconds
}

// AudioConfig contains decoding parameters
type AudioConfig struct {
	SampleRate      int `yaml:"sample_rate"`      // analysis sample rate
	ResampleQuality int `yaml:"resample_quality"` // beep resampler quality, 1..64
}

// AnalysisConfig contains the delivery metrics tuning knobs.
// The defaults are heuristics, not physical constants.
type AnalysisConfig struct {
	FrameLength   int     `yaml:"frame_length" json:"frame_length"` // samples
	HopLength     int     `yaml:"hop_length" json:"hop_length"`     // samples
	MelBands      int     `yaml:"mel_bands" json:"mel_bands"`
	OnsetsPerWord float64 `yaml:"onsets_per_word" json:"onsets_per_word"`
	TopDB         float64 `yaml:"top_db" json:"top_db"`
	LoudnessScale float64 `yaml:"loudness_scale" json:"loudness_scale"`
	OnsetDelta    float64 `yaml:"onset_delta" json:"onset_delta"`
	PreMax        float64 `yaml:"pre_max" json:"pre_max"`   // seconds
	PostMax       float64 `yaml:"post_max" json:"post_max"` // seconds
	PreAvg        float64 `yaml:"pre_avg" json:"pre_avg"`   // seconds
	PostAvg       float64 `yaml:"post_avg" json:"post_avg"` // seconds
	Wait          float64 `yaml:"wait" json:"wait"`         // seconds
}

// RulesConfig contains the delivery tip thresholds
type RulesConfig struct {
	SlowWPM               float64 `yaml:"slow_wpm" json:"slow_wpm"`
	FastWPM               float64 `yaml:"fast_wpm" json:"fast_wpm"`
	FewPauses             int     `yaml:"few_pauses" json:"few_pauses"`
	FewPausesMinDuration  float64 `yaml:"few_pauses_min_duration" json:"few_pauses_min_duration"` // seconds
	ManyPauses            int     `yaml:"many_pauses" json:"many_pauses"`
	ManyPausesMaxDuration float64 `yaml:"many_pauses_max_duration" json:"many_pauses_max_duration"` // seconds
	WeakLoudness          float64 `yaml:"weak_loudness" json:"weak_loudness"`
	StrongLoudness        float64 `yaml:"strong_loudness" json:"strong_loudness"`
}

// TranscriptionConfig contains transcription API configuration
type TranscriptionConfig struct {
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	Language      string `yaml:"language"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	SendDecoded   bool   `yaml:"send_decoded"`
}

// FeedbackConfig contains the text feedback generator configuration
type FeedbackConfig struct {
	Endpoint      string  `yaml:"endpoint"`
	APIKey        string  `yaml:"api_key"`
	Model         string  `yaml:"model"`
	Temperature   float64 `yaml:"temperature"`
	Timeout       int     `yaml:"timeout"` // seconds
	MaxRetries    int     `yaml:"max_retries"`
	MaxConcurrent int     `yaml:"max_concurrent"`
}

// S3Config contains the optional object storage source configuration
type S3Config struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Timeout         int    `yaml:"timeout"` // seconds
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration used when no file overrides a value
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:           8080,
			Address:        "0.0.0.0",
			MaxUploadMB:    25,
			RequestTimeout: 120,
		},
		Audio: AudioConfig{
			SampleRate:      22050,
			ResampleQuality: 4,
		},
		Analysis: AnalysisConfig{
			FrameLength:   2048,
			HopLength:     512,
			MelBands:      128,
			OnsetsPerWord: 3,
			TopDB:         25,
			LoudnessScale: 100,
			OnsetDelta:    0.07,
			PreMax:        0.03,
			PostMax:       0.0,
			PreAvg:        0.10,
			PostAvg:       0.10,
			Wait:          0.03,
		},
		Rules: RulesConfig{
			SlowWPM:               120,
			FastWPM:               180,
			FewPauses:             3,
			FewPausesMinDuration:  15,
			ManyPauses:            10,
			ManyPausesMaxDuration: 60,
			WeakLoudness:          40,
			StrongLoudness:        80,
		},
		Transcription: TranscriptionConfig{
			Endpoint:      "https://api.openai.com/v1/audio/transcriptions",
			Model:         "whisper-1",
			Timeout:       60,
			MaxRetries:    2,
			MaxConcurrent: 4,
		},
		Feedback: FeedbackConfig{
			Endpoint:      "https://api.openai.com/v1/chat/completions",
			Model:         "gpt-3.5-turbo",
			Temperature:   0.7,
			Timeout:       30,
			MaxRetries:    2,
			MaxConcurrent: 4,
		},
		S3: S3Config{
			Region:  "auto",
			Timeout: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads and parses the configuration file on top of Default
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// LoadOrDefault loads path if it exists and falls back to Default otherwise
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		config := Default()
		config.ApplyEnv()
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
		return config, nil
	}
	return Load(path)
}

// ApplyEnv fills secrets left empty in the file from the environment
func (c *Config) ApplyEnv() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if c.Transcription.APIKey == "" {
			c.Transcription.APIKey = key
		}
		if c.Feedback.APIKey == "" {
			c.Feedback.APIKey = key
		}
	}
	if c.S3.AccessKeyID == "" {
		c.S3.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	}
	if c.S3.SecretAccessKey == "" {
		c.S3.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Analysis.Validate(); err != nil {
		return fmt.Errorf("analysis config: %w", err)
	}

	if err := c.Rules.Validate(); err != nil {
		return fmt.Errorf("rules config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Feedback.Validate(); err != nil {
		return fmt.Errorf("feedback config: %w", err)
	}

	if err := c.S3.Validate(); err != nil {
		return fmt.Errorf("s3 config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
	}

	if h.Address == "" {
		return fmt.Errorf("http address cannot be empty")
	}

	if h.MaxUploadMB < 1 {
		return fmt.Errorf("max_upload_mb must be at least 1, got %d", h.MaxUploadMB)
	}

	if h.RequestTimeout < 1 {
		return fmt.Errorf("request_timeout must be at least 1 second, got %d", h.RequestTimeout)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate < 8000 || a.SampleRate > 192000 {
		return fmt.Errorf("sample_rate must be between 8000 and 192000 Hz, got %d", a.SampleRate)
	}

	if a.ResampleQuality < 1 || a.ResampleQuality > 64 {
		return fmt.Errorf("resample_quality must be between 1 and 64, got %d", a.ResampleQuality)
	}

	return nil
}

// Validate validates analysis configuration
func (a *AnalysisConfig) Validate() error {
	if a.FrameLength < 64 || a.FrameLength&(a.FrameLength-1) != 0 {
		return fmt.Errorf("frame_length must be a power of two >= 64, got %d", a.FrameLength)
	}

	if a.HopLength < 1 || a.HopLength > a.FrameLength {
		return fmt.Errorf("hop_length must be between 1 and frame_length (%d), got %d", a.FrameLength, a.HopLength)
	}

	if a.MelBands < 1 || a.MelBands > a.FrameLength/2 {
		return fmt.Errorf("mel_bands must be between 1 and %d, got %d", a.FrameLength/2, a.MelBands)
	}

	if a.OnsetsPerWord <= 0 {
		return fmt.Errorf("onsets_per_word must be positive, got %f", a.OnsetsPerWord)
	}

	if a.TopDB <= 0 {
		return fmt.Errorf("top_db must be positive, got %f", a.TopDB)
	}

	if a.LoudnessScale <= 0 {
		return fmt.Errorf("loudness_scale must be positive, got %f", a.LoudnessScale)
	}

	if a.OnsetDelta < 0 || a.OnsetDelta >= 1 {
		return fmt.Errorf("onset_delta must be between 0 and 1 (exclusive), got %f", a.OnsetDelta)
	}

	for name, v := range map[string]float64{
		"pre_max": a.PreMax, "post_max": a.PostMax,
		"pre_avg": a.PreAvg, "post_avg": a.PostAvg, "wait": a.Wait,
	} {
		if v < 0 {
			return fmt.Errorf("%s cannot be negative, got %f", name, v)
		}
	}

	return nil
}

// Validate validates rule thresholds
func (r *RulesConfig) Validate() error {
	if r.SlowWPM < 0 || r.FastWPM <= r.SlowWPM {
		return fmt.Errorf("fast_wpm (%f) must be greater than slow_wpm (%f)", r.FastWPM, r.SlowWPM)
	}

	if r.FewPauses < 0 || r.ManyPauses <= r.FewPauses {
		return fmt.Errorf("many_pauses (%d) must be greater than few_pauses (%d)", r.ManyPauses, r.FewPauses)
	}

	if r.FewPausesMinDuration < 0 || r.ManyPausesMaxDuration < 0 {
		return fmt.Errorf("pause duration thresholds cannot be negative")
	}

	if r.WeakLoudness < 0 || r.StrongLoudness > 100 || r.StrongLoudness <= r.WeakLoudness {
		return fmt.Errorf("loudness thresholds must satisfy 0 <= weak (%f) < strong (%f) <= 100",
			r.WeakLoudness, r.StrongLoudness)
	}

	return nil
}

// Validate validates transcription configuration.
// An empty API key is allowed: the transcriber then reports itself unavailable.
func (t *TranscriptionConfig) Validate() error {
	if t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if t.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", t.MaxRetries)
	}

	if t.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", t.MaxConcurrent)
	}

	return nil
}

// Validate validates feedback generator configuration
func (f *FeedbackConfig) Validate() error {
	if f.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if f.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}

	if f.Temperature < 0 || f.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", f.Temperature)
	}

	if f.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", f.Timeout)
	}

	if f.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", f.MaxRetries)
	}

	if f.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", f.MaxConcurrent)
	}

	return nil
}

// Validate validates S3 configuration. The section is optional as a whole.
func (s *S3Config) Validate() error {
	if (s.AccessKeyID == "") != (s.SecretAccessKey == "") {
		return fmt.Errorf("access_key_id and secret_access_key must be set together")
	}

	if s.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", s.Timeout)
	}

	return nil
}

// IsConfigured reports whether S3 credentials are present
func (s *S3Config) IsConfigured() bool {
	return s.AccessKeyID != "" && s.SecretAccessKey != ""
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	// Anything other than stdout/stderr is treated as a file path
	return nil
}

// GetRequestTimeoutDuration returns the per-request deadline for the HTTP API
func (h *HTTPConfig) GetRequestTimeoutDuration() time.Duration {
	return time.Duration(h.RequestTimeout) * time.Second
}

// GetMaxUploadBytes returns the upload size cap in bytes
func (h *HTTPConfig) GetMaxUploadBytes() int64 {
	return int64(h.MaxUploadMB) << 20
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// GetTimeoutDuration returns the feedback timeout as a time.Duration
func (f *FeedbackConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(f.Timeout) * time.Second
}

// GetTimeoutDuration returns the S3 download timeout as a time.Duration
func (s *S3Config) GetTimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}
