package transcription

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skypro1111/laugh-coach/internal/audio"
	"github.com/skypro1111/laugh-coach/internal/remote"
)

type captured struct {
	filename string
	data     []byte
	model    string
	format   string
	language string
}

func newTranscriptionServer(t *testing.T, reply string, got *captured) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("Failed to parse multipart form: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("Missing file part: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)

		if got != nil {
			*got = captured{
				filename: header.Filename,
				data:     data,
				model:    r.FormValue("model"),
				format:   r.FormValue("response_format"),
				language: r.FormValue("language"),
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(reply))
	}))
}

func testConfig(endpoint string) Config {
	return Config{
		Endpoint:      endpoint,
		APIKey:        "test-key",
		Model:         "whisper-1",
		Timeout:       2 * time.Second,
		MaxRetries:    1,
		MaxConcurrent: 2,
		RetryBackoff:  time.Millisecond,
	}
}

func writeAudio(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write audio: %v", err)
	}
	return path
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "missing model", mutate: func(c *Config) { c.Model = "" }},
		{name: "missing endpoint", mutate: func(c *Config) { c.Endpoint = "" }},
		{name: "missing api key", mutate: func(c *Config) { c.APIKey = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("http://localhost")
			tt.mutate(&cfg)
			if _, err := NewClient(cfg); err == nil {
				t.Error("Expected error but got none")
			}
		})
	}
}

func TestTranscribe(t *testing.T) {
	var got captured
	server := newTranscriptionServer(t, `{"text":"  Why did the chicken cross the road?  ","language":"en"}`, &got)
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Language = "en"
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	path := writeAudio(t, "set.mp3", []byte("ID3 fake mp3 payload"))
	text, err := client.Transcribe(context.Background(), path)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if text != "Why did the chicken cross the road?" {
		t.Errorf("Unexpected transcript %q", text)
	}
	if got.filename != "set.mp3" {
		t.Errorf("Expected filename set.mp3, got %s", got.filename)
	}
	if string(got.data) != "ID3 fake mp3 payload" {
		t.Errorf("Unexpected uploaded data %q", got.data)
	}
	if got.model != "whisper-1" || got.format != "json" || got.language != "en" {
		t.Errorf("Unexpected form fields %+v", got)
	}
	if stats := client.GetStats(); stats.SuccessRequests != 1 {
		t.Errorf("Expected 1 successful request, got %+v", stats)
	}
}

func TestTranscribeWaveform(t *testing.T) {
	var got captured
	server := newTranscriptionServer(t, `{"text":"knock knock"}`, &got)
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	samples := make([]float64, 8000)
	for i := range samples {
		samples[i] = 0.4 * math.Sin(float64(i)/5)
	}
	text, err := client.TranscribeWaveform(context.Background(), &audio.Waveform{Samples: samples, SampleRate: 8000})
	if err != nil {
		t.Fatalf("TranscribeWaveform failed: %v", err)
	}
	if text != "knock knock" {
		t.Errorf("Unexpected transcript %q", text)
	}

	loader, err := audio.NewLoader(8000, 4, nil)
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	uploaded, info, err := loader.Decode(got.data)
	if err != nil {
		t.Fatalf("Uploaded audio is not WAV: %v", err)
	}
	if info.Format != audio.FormatWAV || info.SampleRate != 8000 || uploaded.Duration() != 1 {
		t.Errorf("Unexpected uploaded audio %+v", info)
	}
}

func TestTranscribeErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Invalid file format."}}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	tests := []struct {
		name   string
		call   func() error
		status int
	}{
		{
			name: "missing file",
			call: func() error {
				_, err := client.Transcribe(context.Background(), filepath.Join(t.TempDir(), "nope.wav"))
				return err
			},
		},
		{
			name: "empty audio",
			call: func() error {
				_, err := client.TranscribeAudio(context.Background(), "a.wav", nil)
				return err
			},
		},
		{
			name: "rejected by service",
			call: func() error {
				_, err := client.Transcribe(context.Background(), writeAudio(t, "a.ogg", []byte("OggS")))
				return err
			},
			status: http.StatusBadRequest,
		},
		{
			name: "empty waveform",
			call: func() error {
				_, err := client.TranscribeWaveform(context.Background(), &audio.Waveform{SampleRate: 8000})
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			var se *remote.ServiceError
			if !errors.As(err, &se) {
				t.Fatalf("Expected ServiceError, got %v", err)
			}
			if se.StatusCode != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, se.StatusCode)
			}
		})
	}
}

func TestTranscribeInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	_, err = client.Transcribe(context.Background(), writeAudio(t, "a.wav", []byte("RIFF")))
	var se *remote.ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("Expected ServiceError, got %v", err)
	}
	if se.Message != "invalid response" {
		t.Errorf("Expected invalid response message, got %q", se.Message)
	}
}

func TestProviderInitializesOnce(t *testing.T) {
	server := newTranscriptionServer(t, `{"text":"hello"}`, nil)
	defer server.Close()

	var builds atomic.Int32
	p := NewProviderFunc(func() (*Client, error) {
		builds.Add(1)
		return NewClient(testConfig(server.URL))
	})

	if _, ok := p.Stats(); ok {
		t.Error("Expected no stats before first use")
	}

	path := writeAudio(t, "a.wav", []byte("RIFF"))
	for i := 0; i < 3; i++ {
		text, err := p.Transcribe(context.Background(), path)
		if err != nil {
			t.Fatalf("Transcribe failed: %v", err)
		}
		if text != "hello" {
			t.Errorf("Unexpected transcript %q", text)
		}
	}

	if builds.Load() != 1 {
		t.Errorf("Expected 1 client build, got %d", builds.Load())
	}
	if stats, ok := p.Stats(); !ok || stats.SuccessRequests != 3 {
		t.Errorf("Expected 3 successful requests, got %+v", stats)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), path); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable after close, got %v", err)
	}
}

func TestProviderCachesInitError(t *testing.T) {
	var builds atomic.Int32
	p := NewProviderFunc(func() (*Client, error) {
		builds.Add(1)
		return nil, errors.New("no credentials")
	})

	for i := 0; i < 3; i++ {
		_, err := p.Transcribe(context.Background(), "unused.wav")
		if !errors.Is(err, ErrUnavailable) {
			t.Fatalf("Expected ErrUnavailable, got %v", err)
		}
	}

	if builds.Load() != 1 {
		t.Errorf("Expected a single initialization attempt, got %d", builds.Load())
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close without client failed: %v", err)
	}
}

func TestNewProviderWithoutKey(t *testing.T) {
	cfg := testConfig("http://localhost")
	cfg.APIKey = ""

	_, err := NewProvider(cfg).Get()
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
}
