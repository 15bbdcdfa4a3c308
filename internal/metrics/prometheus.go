package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "laugh_coach"

// Analysis outcomes
const (
	OutcomeSuccess       = "success"
	OutcomeDecodeError   = "decode_error"
	OutcomeAnalysisError = "analysis_error"
)

// Metrics contains all Prometheus metrics for the coach service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Delivery analysis metrics
	Analyses         *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	AudioDuration    prometheus.Histogram
	SpeakingRate     prometheus.Histogram
	Pauses           prometheus.Histogram
	Loudness         prometheus.Histogram
	Tips             *prometheus.CounterVec

	// Joke feedback metrics
	JokesReviewed prometheus.Counter

	// Remote service metrics
	RemoteRequests *prometheus.CounterVec
	RemoteDuration *prometheus.HistogramVec
	RemoteRetries  *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Delivery analysis metrics
		Analyses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Total number of audio analyses by outcome",
		}, []string{"outcome"}),
		AnalysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Time spent computing delivery metrics",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		}),
		AudioDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "audio_duration_seconds",
			Help:      "Length of analyzed recordings",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17 minutes
		}),
		SpeakingRate: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "speaking_rate_wpm",
			Help:      "Estimated words per minute of analyzed recordings",
			Buckets:   prometheus.LinearBuckets(0, 30, 11), // 0 to 300 wpm
		}),
		Pauses: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pauses",
			Help:      "Number of pauses in analyzed recordings",
			Buckets:   prometheus.LinearBuckets(0, 2, 11),
		}),
		Loudness: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "normalized_loudness",
			Help:      "Normalized loudness score of analyzed recordings",
			Buckets:   prometheus.LinearBuckets(0, 10, 11), // 0 to 100
		}),
		Tips: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tips_total",
			Help:      "Total number of delivery tips emitted by code",
		}, []string{"code"}),

		// Joke feedback metrics
		JokesReviewed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jokes_reviewed_total",
			Help:      "Total number of jokes sent for critique",
		}),

		// Remote service metrics
		RemoteRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_requests_total",
			Help:      "Total number of external service requests by outcome",
		}, []string{"service", "outcome"}),
		RemoteDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_request_duration_seconds",
			Help:      "Duration of external service requests including retries",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~1 minute
		}, []string{"service"}),
		RemoteRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_retries_total",
			Help:      "Total number of external service request retries",
		}, []string{"service"}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordAnalysis records a successful analysis and its metric values
func (m *Metrics) RecordAnalysis(elapsed time.Duration, durationSeconds, wpm float64, pauses int, loudness float64) {
	if m == nil {
		return
	}
	m.Analyses.WithLabelValues(OutcomeSuccess).Inc()
	m.AnalysisDuration.Observe(elapsed.Seconds())
	m.AudioDuration.Observe(durationSeconds)
	m.SpeakingRate.Observe(wpm)
	m.Pauses.Observe(float64(pauses))
	m.Loudness.Observe(loudness)
}

// RecordAnalysisFailure records an analysis that ended with outcome
func (m *Metrics) RecordAnalysisFailure(outcome string) {
	if m == nil {
		return
	}
	m.Analyses.WithLabelValues(outcome).Inc()
}

// RecordTip increments the counter for a delivery tip
func (m *Metrics) RecordTip(code string) {
	if m == nil {
		return
	}
	m.Tips.WithLabelValues(code).Inc()
}

// RecordJoke increments the jokes reviewed counter
func (m *Metrics) RecordJoke() {
	if m == nil {
		return
	}
	m.JokesReviewed.Inc()
}

// ObserveRequest records a finished external service request
func (m *Metrics) ObserveRequest(service, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RemoteRequests.WithLabelValues(service, outcome).Inc()
	m.RemoteDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// ObserveRetry increments the retry counter of service
func (m *Metrics) ObserveRetry(service string) {
	if m == nil {
		return
	}
	m.RemoteRetries.WithLabelValues(service).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
