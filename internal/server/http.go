package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skypro1111/laugh-coach/internal/audio"
	"github.com/skypro1111/laugh-coach/internal/coach"
	"github.com/skypro1111/laugh-coach/internal/config"
	"github.com/skypro1111/laugh-coach/internal/feedback"
	"github.com/skypro1111/laugh-coach/internal/metrics"
	"github.com/skypro1111/laugh-coach/internal/remote"
	"github.com/skypro1111/laugh-coach/internal/source"
)

const serviceName = "laugh-coach"

// multipartOverhead is allowed on top of the upload limit for form framing
const multipartOverhead = 1 << 20

// Coach is the pipeline served by the API
type Coach interface {
	JokeFeedback(ctx context.Context, joke string) (string, error)
	AnalyzeUpload(ctx context.Context, r io.Reader, name string) (*coach.Report, error)
	GetStats() coach.Stats
}

// Options contains the dependencies of the HTTP server
type Options struct {
	Config   *config.Config
	Coach    Coach
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer // source for /metrics, nil for the default registry
	Version  string
	Logger   *slog.Logger
}

// HTTPServer provides the coaching API and monitoring endpoints
type HTTPServer struct {
	server   *http.Server
	handler  http.Handler
	logger   *slog.Logger
	config   *config.Config
	coach    Coach
	metrics  *metrics.Metrics
	validate *validator.Validate
	version  string

	startTime time.Time
}

// feedbackRequest is the body of POST /feedback
type feedbackRequest struct {
	Text string `json:"text" validate:"required,max=10000"`
}

// feedbackResponse is the reply of POST /feedback
type feedbackResponse struct {
	Feedback string `json:"feedback"`
}

// errorResponse is the body of every API error
type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(opts Options) *HTTPServer {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	h := &HTTPServer{
		logger:    opts.Logger,
		config:    opts.Config,
		coach:     opts.Coach,
		metrics:   opts.Metrics,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		version:   opts.Version,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux, opts.Gatherer)
	h.handler = mux

	requestTimeout := opts.Config.HTTP.GetRequestTimeoutDuration()
	h.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", opts.Config.HTTP.Address, opts.Config.HTTP.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       requestTimeout,
		WriteTimeout:      requestTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux, gatherer prometheus.Gatherer) {
	// Coaching endpoints
	mux.HandleFunc("/feedback", h.withMetrics("/feedback", h.handleFeedback))
	mux.HandleFunc("/analyze", h.withMetrics("/analyze", h.handleAnalyze))

	// Monitoring endpoints
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// Handler returns the routed handler
func (h *HTTPServer) Handler() http.Handler {
	return h.handler
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		// Create a response writer wrapper to capture status code
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// requestContext bounds a coaching request by the configured timeout
func (h *HTTPServer) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	timeout := h.config.HTTP.GetRequestTimeoutDuration()
	if timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), timeout)
}

// handleFeedback implements the POST /feedback endpoint
func (h *HTTPServer) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req feedbackRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, multipartOverhead))
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	critique, err := h.coach.JokeFeedback(ctx, req.Text)
	if err != nil {
		h.writeCoachError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, feedbackResponse{Feedback: critique})
}

// handleAnalyze implements the POST /analyze endpoint
func (h *HTTPServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := h.config.HTTP.GetMaxUploadBytes()
	if r.ContentLength > limit+multipartOverhead {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", limit))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", limit))
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	ctx, cancel := h.requestContext(r)
	defer cancel()

	report, err := h.coach.AnalyzeUpload(ctx, file, header.Filename)
	if err != nil {
		h.writeCoachError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// writeCoachError maps pipeline errors to HTTP statuses
func (h *HTTPServer) writeCoachError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		decodeErr  *audio.DecodeError
		serviceErr *remote.ServiceError
		maxErr     *http.MaxBytesError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, feedback.ErrEmptyJoke):
		status = http.StatusBadRequest
	case errors.Is(err, source.ErrUnsupportedExtension):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, source.ErrTooLarge), errors.As(err, &maxErr):
		status = http.StatusRequestEntityTooLarge
	case errors.As(err, &decodeErr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &serviceErr):
		status = http.StatusBadGateway
		if serviceErr.Timeout() {
			status = http.StatusGatewayTimeout
		}
	}

	if status >= 500 {
		h.logger.Error("Request failed",
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	} else {
		h.logger.Debug("Request rejected",
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	}

	writeError(w, status, err.Error())
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := h.coach.GetStats()

	transcriptionStatus := "not initialized"
	if stats.Transcription != nil {
		transcriptionStatus = "ready"
	}
	feedbackStatus := "not configured"
	if stats.Feedback != nil {
		feedbackStatus = "ready"
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    serviceName,
			"version": h.version,
		},
		"components": map[string]interface{}{
			"analyzer": map[string]interface{}{
				"status":   "running",
				"analyzed": stats.Analyzer.Analyzed,
				"failed":   stats.Analyzer.Failed,
			},
			"transcription": map[string]interface{}{
				"status": transcriptionStatus,
			},
			"feedback": map[string]interface{}{
				"status": feedbackStatus,
			},
		},
	}

	writeJSON(w, http.StatusOK, health)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	c := h.config

	// Credentials are intentionally omitted
	sanitizedConfig := map[string]interface{}{
		"http": map[string]interface{}{
			"port":            c.HTTP.Port,
			"address":         c.HTTP.Address,
			"max_upload_mb":   c.HTTP.MaxUploadMB,
			"request_timeout": c.HTTP.RequestTimeout,
		},
		"audio": map[string]interface{}{
			"sample_rate":      c.Audio.SampleRate,
			"resample_quality": c.Audio.ResampleQuality,
		},
		"analysis": c.Analysis,
		"rules":    c.Rules,
		"transcription": map[string]interface{}{
			"endpoint":       c.Transcription.Endpoint,
			"model":          c.Transcription.Model,
			"language":       c.Transcription.Language,
			"timeout":        c.Transcription.Timeout,
			"max_retries":    c.Transcription.MaxRetries,
			"max_concurrent": c.Transcription.MaxConcurrent,
			"send_decoded":   c.Transcription.SendDecoded,
		},
		"feedback": map[string]interface{}{
			"endpoint":       c.Feedback.Endpoint,
			"model":          c.Feedback.Model,
			"temperature":    c.Feedback.Temperature,
			"timeout":        c.Feedback.Timeout,
			"max_retries":    c.Feedback.MaxRetries,
			"max_concurrent": c.Feedback.MaxConcurrent,
		},
		"s3": map[string]interface{}{
			"configured": c.S3.IsConfigured(),
			"endpoint":   c.S3.Endpoint,
			"region":     c.S3.Region,
		},
		"logging": map[string]interface{}{
			"level":  c.Logging.Level,
			"format": c.Logging.Format,
			"output": c.Logging.Output,
		},
	}

	writeJSON(w, http.StatusOK, sanitizedConfig)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := map[string]interface{}{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
		"coach":     h.coach.GetStats(),
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "Laugh Coach",
		"version": h.version,
		"endpoints": map[string]interface{}{
			"GET /":          "API documentation",
			"POST /feedback": "Critique a joke: {\"text\": \"...\"}",
			"POST /analyze":  "Coach a recording: multipart field 'file' (.wav or .mp3)",
			"GET /health":    "Service health check",
			"GET /config":    "Get service configuration",
			"GET /stats":     "Get service statistics",
			"GET /metrics":   "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	writeJSON(w, http.StatusOK, apiDoc)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// validationMessage renders validator errors as one line
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return "text is required"
	case "max":
		return fmt.Sprintf("text must be at most %s characters", fe.Param())
	}
	return fmt.Sprintf("invalid field %s: %s", fe.Field(), fe.Tag())
}
