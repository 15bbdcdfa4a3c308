package coach

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/skypro1111/laugh-coach/internal/config"
	"github.com/skypro1111/laugh-coach/internal/metrics"
	"github.com/skypro1111/laugh-coach/internal/remote"
)

func newMockAPI(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/audio/transcriptions", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"text": "my dog is so lazy"})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Add a tag.  "}}]}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testConfig(endpoint string) *config.Config {
	cfg := config.Default()
	cfg.Audio.SampleRate = testSampleRate
	cfg.Transcription.MaxRetries = 0
	cfg.Feedback.MaxRetries = 0
	if endpoint != "" {
		cfg.Transcription.Endpoint = endpoint + "/v1/audio/transcriptions"
		cfg.Transcription.APIKey = "dev"
		cfg.Feedback.Endpoint = endpoint + "/v1/chat/completions"
		cfg.Feedback.APIKey = "dev"
	}
	return cfg
}

func TestBuildEndToEnd(t *testing.T) {
	server := newMockAPI(t)
	m := metrics.NewMetrics(prometheus.NewRegistry())

	c, err := Build(testConfig(server.URL), nil, m)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer c.Close()

	report, err := c.AnalyzeAudio(context.Background(), writeFile(t, "set.wav", toneWAV(t, 1, 0.3)))
	if err != nil {
		t.Fatalf("AnalyzeAudio failed: %v", err)
	}

	if report.Transcript != "my dog is so lazy" {
		t.Errorf("Unexpected transcript %q (error %q)", report.Transcript, report.TranscriptError)
	}
	if report.Feedback != "Add a tag." {
		t.Errorf("Unexpected feedback %q (error %q)", report.Feedback, report.FeedbackError)
	}
	if report.Delivery == nil {
		t.Fatal("Expected delivery metrics")
	}

	if got := testutil.ToFloat64(m.Analyses.WithLabelValues(metrics.OutcomeSuccess)); got != 1 {
		t.Errorf("Expected 1 recorded analysis, got %v", got)
	}
	if got := testutil.ToFloat64(m.RemoteRequests.WithLabelValues("transcription", remote.OutcomeSuccess)); got != 1 {
		t.Errorf("Expected 1 successful transcription request, got %v", got)
	}
	if got := testutil.ToFloat64(m.RemoteRequests.WithLabelValues("feedback", remote.OutcomeSuccess)); got != 1 {
		t.Errorf("Expected 1 successful feedback request, got %v", got)
	}

	stats := c.GetStats()
	if stats.Transcription == nil || stats.Transcription.SuccessRequests != 1 {
		t.Errorf("Expected transcription stats, got %+v", stats.Transcription)
	}
	if stats.Feedback == nil || stats.Feedback.SuccessRequests != 1 {
		t.Errorf("Expected feedback stats, got %+v", stats.Feedback)
	}
}

func TestBuildWithoutAPIKeys(t *testing.T) {
	c, err := Build(testConfig(""), nil, nil)
	if err != nil {
		t.Fatalf("Build without API keys should succeed: %v", err)
	}
	defer c.Close()

	report, err := c.AnalyzeAudio(context.Background(), writeFile(t, "set.wav", toneWAV(t, 1, 0.3)))
	if err != nil {
		t.Fatalf("AnalyzeAudio failed: %v", err)
	}
	if report.TranscriptError != ModelUnavailableMessage {
		t.Errorf("Expected %q, got %q", ModelUnavailableMessage, report.TranscriptError)
	}
	if report.Delivery == nil {
		t.Error("Metrics should not depend on the remote services")
	}

	_, err = c.JokeFeedback(context.Background(), "a joke")
	var serr *remote.ServiceError
	if !errors.As(err, &serr) {
		t.Fatalf("Expected ServiceError, got %v", err)
	}
	if !strings.Contains(serr.Error(), "not configured") {
		t.Errorf("Expected not configured message, got %q", serr.Error())
	}
}

func TestBuildInvalidConfig(t *testing.T) {
	cfg := testConfig("")
	cfg.Audio.ResampleQuality = 0

	if _, err := Build(cfg, nil, nil); err == nil {
		t.Fatal("Expected error for invalid resample quality")
	}
}

func TestConfigConversions(t *testing.T) {
	cfg := config.Default()

	params := AnalysisParams(cfg.Analysis)
	if err := params.Validate(); err != nil {
		t.Errorf("Default analysis config should convert to valid params: %v", err)
	}
	if params.Peaks.Delta != cfg.Analysis.OnsetDelta {
		t.Errorf("Expected delta %f, got %f", cfg.Analysis.OnsetDelta, params.Peaks.Delta)
	}

	th := Thresholds(cfg.Rules)
	if err := th.Validate(); err != nil {
		t.Errorf("Default rules config should convert to valid thresholds: %v", err)
	}
	if th.ManyPausesMaxDuration != 60 {
		t.Errorf("Expected many pauses max duration 60, got %f", th.ManyPausesMaxDuration)
	}
}
