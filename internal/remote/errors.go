package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrClosed is returned for requests issued after Close
var ErrClosed = errors.New("client closed")

// maxMessageLen caps how much of an error body is kept in a ServiceError
const maxMessageLen = 512

// ServiceError describes a failed call to an external service.
// StatusCode is zero when no HTTP response was received.
type ServiceError struct {
	Service    string
	StatusCode int
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	var b strings.Builder
	b.WriteString(e.Service)
	b.WriteString(" request failed")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": HTTP %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the call ran out of time
func (e *ServiceError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// Retryable reports whether repeating the call could succeed:
// rate limiting, server errors and transport failures
func (e *ServiceError) Retryable() bool {
	if errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, ErrClosed) {
		return false
	}
	if e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500 {
		return true
	}
	if e.StatusCode != 0 {
		return false
	}
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr)
}

// errorMessage extracts a readable message from an error response body.
// OpenAI-style {"error": {"message": ...}} bodies are unwrapped.
func errorMessage(body []byte) string {
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return truncate(apiErr.Error.Message)
	}
	return truncate(strings.TrimSpace(string(body)))
}

func truncate(s string) string {
	if len(s) <= maxMessageLen {
		return s
	}
	return s[:maxMessageLen] + "..."
}
