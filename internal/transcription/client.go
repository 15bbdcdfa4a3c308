package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/skypro1111/laugh-coach/internal/audio"
	"github.com/skypro1111/laugh-coach/internal/remote"
)

// ServiceName identifies transcription calls in errors and metrics
const ServiceName = "transcription"

// Config contains transcription client configuration
type Config struct {
	Endpoint      string
	APIKey        string
	Model         string
	Language      string // ISO-639-1, empty for auto-detect
	Timeout       time.Duration
	MaxRetries    int
	MaxConcurrent int
	RetryBackoff  time.Duration
	Observer      remote.Observer
	Logger        *slog.Logger
}

// Response is the JSON reply of an OpenAI-compatible transcription endpoint
type Response struct {
	Text     string    `json:"text"`
	Language string    `json:"language,omitempty"`
	Duration float64   `json:"duration,omitempty"`
	Segments []Segment `json:"segments,omitempty"`
}

// Segment represents a segment of transcribed text
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Client transcribes audio files through a remote speech-to-text API
type Client struct {
	config Config
	remote *remote.Client
	logger *slog.Logger
}

// NewClient creates a new transcription client
func NewClient(config Config) (*Client, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("transcription model cannot be empty")
	}

	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	rc, err := remote.NewClient(remote.Config{
		Service:       ServiceName,
		Endpoint:      config.Endpoint,
		APIKey:        config.APIKey,
		Timeout:       config.Timeout,
		MaxRetries:    config.MaxRetries,
		MaxConcurrent: config.MaxConcurrent,
		RetryBackoff:  config.RetryBackoff,
		Observer:      config.Observer,
		Logger:        config.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		config: config,
		remote: rc,
		logger: config.Logger,
	}, nil
}

// Transcribe returns the text spoken in the audio file at path
func (c *Client) Transcribe(ctx context.Context, path string) (string, error) {
	resp, err := c.TranscribeFile(ctx, path)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// TranscribeFile uploads the file at path and returns the full response
func (c *Client) TranscribeFile(ctx context.Context, path string) (*Response, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &remote.ServiceError{Service: ServiceName, Message: "cannot read audio file", Err: err}
	}
	return c.TranscribeAudio(ctx, filepath.Base(path), data)
}

// TranscribeWaveform encodes w as WAV and transcribes it
func (c *Client) TranscribeWaveform(ctx context.Context, w *audio.Waveform) (string, error) {
	data, err := audio.EncodeWAV(w)
	if err != nil {
		return "", &remote.ServiceError{Service: ServiceName, Message: "cannot encode waveform", Err: err}
	}

	resp, err := c.TranscribeAudio(ctx, "audio.wav", data)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// TranscribeAudio uploads in-memory audio. filename carries the extension
// the service uses to detect the container.
func (c *Client) TranscribeAudio(ctx context.Context, filename string, data []byte) (*Response, error) {
	if len(data) == 0 {
		return nil, &remote.ServiceError{Service: ServiceName, Message: "empty audio"}
	}

	startTime := time.Now()
	body, err := c.remote.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		payload, contentType, err := c.createMultipartRequest(filename, data)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, payload)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, c.remote.ResponseError(fmt.Errorf("failed to parse response JSON: %w", err))
	}
	resp.Text = strings.TrimSpace(resp.Text)

	c.logger.Debug("Transcription completed",
		slog.String("file", filename),
		slog.Int("bytes", len(data)),
		slog.Int("characters", len(resp.Text)),
		slog.Duration("elapsed", time.Since(startTime)),
	)

	return &resp, nil
}

// createMultipartRequest creates a multipart/form-data request body
func (c *Client) createMultipartRequest(filename string, data []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := fileWriter.Write(data); err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}

	fields := [][2]string{
		{"model", c.config.Model},
		{"response_format", "json"},
	}
	if c.config.Language != "" {
		fields = append(fields, [2]string{"language", c.config.Language})
	}

	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", f[0], err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

// GetStats returns request statistics
func (c *Client) GetStats() remote.ClientStats {
	return c.remote.GetStats()
}

// Close waits for in-flight requests and releases connections
func (c *Client) Close() error {
	return c.remote.Close()
}
