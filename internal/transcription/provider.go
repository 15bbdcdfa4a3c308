package transcription

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/skypro1111/laugh-coach/internal/audio"
	"github.com/skypro1111/laugh-coach/internal/remote"
)

// ErrUnavailable is returned when the transcription client could not be set up
var ErrUnavailable = errors.New("transcription model unavailable")

// Provider owns the process-wide transcription client. The client is
// created on first use and the outcome, success or failure, is kept for the
// lifetime of the process.
type Provider struct {
	factory func() (*Client, error)

	once   sync.Once
	client *Client
	err    error

	mu     sync.Mutex
	closed bool
}

// NewProvider returns a provider that builds its client from config
func NewProvider(config Config) *Provider {
	return NewProviderFunc(func() (*Client, error) {
		return NewClient(config)
	})
}

// NewProviderFunc returns a provider that builds its client with factory
func NewProviderFunc(factory func() (*Client, error)) *Provider {
	return &Provider{factory: factory}
}

// Get returns the shared client, initializing it on the first call
func (p *Provider) Get() (*Client, error) {
	p.once.Do(func() {
		client, err := p.factory()
		if err != nil {
			p.err = fmt.Errorf("%w: %v", ErrUnavailable, err)
			return
		}
		p.mu.Lock()
		p.client = client
		p.mu.Unlock()
	})

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, remote.ErrClosed)
	}

	return p.client, p.err
}

// Transcribe transcribes the audio file at path with the shared client
func (p *Provider) Transcribe(ctx context.Context, path string) (string, error) {
	client, err := p.Get()
	if err != nil {
		return "", err
	}
	return client.Transcribe(ctx, path)
}

// TranscribeWaveform transcribes an already decoded waveform
func (p *Provider) TranscribeWaveform(ctx context.Context, w *audio.Waveform) (string, error) {
	client, err := p.Get()
	if err != nil {
		return "", err
	}
	return client.TranscribeWaveform(ctx, w)
}

// Stats returns client statistics, or false when no client was created
func (p *Provider) Stats() (remote.ClientStats, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return remote.ClientStats{}, false
	}
	return p.client.GetStats(), true
}

// Close shuts the shared client down. Later calls fail with ErrUnavailable.
func (p *Provider) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	client := p.client
	p.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Close()
}
