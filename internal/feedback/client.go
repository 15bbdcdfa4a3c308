package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/skypro1111/laugh-coach/internal/remote"
)

// ServiceName identifies feedback calls in errors and metrics
const ServiceName = "feedback"

// SystemPrompt sets the persona of the coach
const SystemPrompt = "You're a supportive comedy coach."

const promptTemplate = `You are a supportive comedy coach. Analyze this joke for humor, structure, and clarity.
Provide constructive feedback and specific suggestions for improvement.
Joke:
"%s"`

// ErrEmptyJoke is returned when there is nothing to critique
var ErrEmptyJoke = errors.New("joke text is empty")

// BuildPrompt wraps the joke in the coaching instructions
func BuildPrompt(joke string) string {
	return fmt.Sprintf(promptTemplate, joke)
}

// Config contains feedback client configuration
type Config struct {
	Endpoint      string
	APIKey        string
	Model         string
	Temperature   float64
	Timeout       time.Duration
	MaxRetries    int
	MaxConcurrent int
	RetryBackoff  time.Duration
	Observer      remote.Observer
	Logger        *slog.Logger
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// Client asks a chat-completion API for a critique of a joke
type Client struct {
	config Config
	remote *remote.Client
	logger *slog.Logger
}

// NewClient creates a new feedback client
func NewClient(config Config) (*Client, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("feedback model cannot be empty")
	}

	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2, got %f", config.Temperature)
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

// Generate returns the coach's critique of joke
func (c *Client) Generate(ctx context.Context, joke string) (string, error) {
	if strings.TrimSpace(joke) == "" {
		return "", ErrEmptyJoke
	}

	payload, err := json.Marshal(chatRequest{
		Model: c.config.Model,
		Messages: []message{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: BuildPrompt(joke)},
		},
		Temperature: c.config.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode chat request: %w", err)
	}

	startTime := time.Now()
	body, err := c.remote.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", c.remote.ResponseError(fmt.Errorf("failed to parse response JSON: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", c.remote.ResponseError(errors.New("no choices in response"))
	}

	critique := strings.TrimSpace(resp.Choices[0].Message.Content)

	c.logger.Debug("Feedback generated",
		slog.Int("joke_characters", len(joke)),
		slog.Int("critique_characters", len(critique)),
		slog.Duration("elapsed", time.Since(startTime)),
	)

	return critique, nil
}

// GetStats returns request statistics
func (c *Client) GetStats() remote.ClientStats {
	return c.remote.GetStats()
}

// Close waits for in-flight requests and releases connections
func (c *Client) Close() error {
	return c.remote.Close()
}

// Unavailable is a generator standing in for a client that could not be
// configured; every call fails with the setup error.
type Unavailable struct {
	Err error
}

// Generate always fails
func (u Unavailable) Generate(ctx context.Context, joke string) (string, error) {
	if strings.TrimSpace(joke) == "" {
		return "", ErrEmptyJoke
	}
	return "", &remote.ServiceError{Service: ServiceName, Message: "feedback service not configured", Err: u.Err}
}
