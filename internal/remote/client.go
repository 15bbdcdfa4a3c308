package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// maxBackoff caps the delay between retries
const maxBackoff = 30 * time.Second

// Outcome labels for Observer
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Observer receives per-request measurements, e.g. for Prometheus
type Observer interface {
	ObserveRequest(service, outcome string, duration time.Duration)
	ObserveRetry(service string)
}

// Config contains remote client configuration
type Config struct {
	Service       string // name used in errors, logs and metrics
	Endpoint      string
	APIKey        string
	Timeout       time.Duration // per attempt
	MaxRetries    int
	MaxConcurrent int
	RetryBackoff  time.Duration // delay before the first retry, doubled each time
	UserAgent     string
	Observer      Observer
	Logger        *slog.Logger
}

// Client sends authenticated JSON or multipart requests to one endpoint,
// bounding concurrency and retrying transient failures
type Client struct {
	config     Config
	httpClient *http.Client
	semaphore  chan struct{} // Rate limiting semaphore
	closed     atomic.Bool
	done       chan struct{} // closed by Close

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	totalRetries    uint64
	avgResponseTime time.Duration

	mu sync.RWMutex
}

// ClientStats represents client statistics
type ClientStats struct {
	Service         string        `json:"service"`
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	TotalRetries    uint64        `json:"total_retries"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	ActiveRequests  int           `json:"active_requests"`
}

// RequestBuilder creates a fresh request for each attempt
type RequestBuilder func(ctx context.Context) (*http.Request, error)

// NewClient creates a new remote HTTP client
func NewClient(config Config) (*Client, error) {
	if config.Service == "" {
		return nil, fmt.Errorf("service name cannot be empty")
	}

	if config.Endpoint == "" {
		return nil, fmt.Errorf("%s endpoint cannot be empty", config.Service)
	}

	if config.APIKey == "" {
		return nil, fmt.Errorf("%s API key cannot be empty", config.Service)
	}

	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}

	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}

	if config.RetryBackoff <= 0 {
		config.RetryBackoff = time.Second
	}

	if config.UserAgent == "" {
		config.UserAgent = "laugh-coach/1.0"
	}

	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		semaphore:  make(chan struct{}, config.MaxConcurrent),
		done:       make(chan struct{}),
	}, nil
}

// Endpoint returns the configured endpoint URL
func (c *Client) Endpoint() string {
	return c.config.Endpoint
}

// Do runs build and sends the request, retrying transient failures.
// It returns the response body of the first 2xx reply. Every error is a
// *ServiceError.
func (c *Client) Do(ctx context.Context, build RequestBuilder) ([]byte, error) {
	if c.closed.Load() {
		return nil, c.fail(ErrClosed)
	}

	// Acquire semaphore for rate limiting
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-c.done:
		return nil, c.fail(ErrClosed)
	case <-ctx.Done():
		return nil, c.fail(ctx.Err())
	}

	// Close may have started while we waited for a slot
	if c.closed.Load() {
		return nil, c.fail(ErrClosed)
	}

	startTime := time.Now()
	c.incrementTotalRequests()

	var lastErr *ServiceError

	// Retry loop with exponential backoff
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.incrementTotalRetries()

			backoff := c.backoff(attempt)
			c.config.Logger.Debug("Retrying remote request",
				slog.String("service", c.config.Service),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff),
				slog.String("last_error", lastErr.Error()),
			)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				lastErr = c.wrap(ctx.Err())
				c.finish(startTime, false)
				return nil, lastErr
			}
		}

		body, err := c.doRequest(ctx, build)
		if err == nil {
			c.finish(startTime, true)
			return body, nil
		}

		lastErr = err
		if !err.Retryable() {
			break
		}
	}

	c.finish(startTime, false)
	return nil, lastErr
}

// backoff returns the delay before the given retry attempt
func (c *Client) backoff(attempt int) time.Duration {
	d := c.config.RetryBackoff << (attempt - 1)
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}

// doRequest performs a single HTTP request
func (c *Client) doRequest(ctx context.Context, build RequestBuilder) ([]byte, *ServiceError) {
	httpReq, err := build(ctx)
	if err != nil {
		return nil, c.wrap(fmt.Errorf("failed to create HTTP request: %w", err))
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// the caller's deadline wins over the transport's description of it
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, c.wrap(ctxErr)
		}
		return nil, c.wrap(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.wrap(fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ServiceError{
			Service:    c.config.Service,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(respBody),
		}
	}

	return respBody, nil
}

func (c *Client) wrap(err error) *ServiceError {
	return &ServiceError{Service: c.config.Service, Err: err}
}

// fail records a request that never reached the retry loop
func (c *Client) fail(err error) *ServiceError {
	c.incrementTotalRequests()
	c.incrementFailedRequests()
	if c.config.Observer != nil {
		c.config.Observer.ObserveRequest(c.config.Service, OutcomeFailure, 0)
	}
	return c.wrap(err)
}

func (c *Client) finish(startTime time.Time, success bool) {
	elapsed := time.Since(startTime)
	outcome := OutcomeFailure
	if success {
		outcome = OutcomeSuccess
		c.incrementSuccessRequests()
		c.updateAvgResponseTime(elapsed)
	} else {
		c.incrementFailedRequests()
	}

	if c.config.Observer != nil {
		c.config.Observer.ObserveRequest(c.config.Service, outcome, elapsed)
	}
}

// Statistics methods
func (c *Client) incrementTotalRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
}

func (c *Client) incrementSuccessRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successRequests++
}

func (c *Client) incrementFailedRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedRequests++
}

func (c *Client) incrementTotalRetries() {
	c.mu.Lock()
	c.totalRetries++
	c.mu.Unlock()

	if c.config.Observer != nil {
		c.config.Observer.ObserveRetry(c.config.Service)
	}
}

func (c *Client) updateAvgResponseTime(responseTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Simple moving average
	if c.avgResponseTime == 0 {
		c.avgResponseTime = responseTime
	} else {
		c.avgResponseTime = (c.avgResponseTime + responseTime) / 2
	}
}

// GetStats returns current client statistics
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	return ClientStats{
		Service:         c.config.Service,
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		SuccessRate:     successRate,
		TotalRetries:    c.totalRetries,
		AvgResponseTime: c.avgResponseTime,
		ActiveRequests:  len(c.semaphore),
	}
}

// Close rejects new requests and waits for in-flight ones to finish
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)

	for i := 0; i < c.config.MaxConcurrent; i++ {
		c.semaphore <- struct{}{}
	}

	c.httpClient.CloseIdleConnections()
	return nil
}

// ResponseError wraps a failure to interpret a successful reply
func (c *Client) ResponseError(err error) *ServiceError {
	return &ServiceError{Service: c.config.Service, Message: "invalid response", Err: err}
}
