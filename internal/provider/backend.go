// Package provider is the gateway to the hosted generative-AI provider
// (Gemini text/vision/audio/image models and the Veo video model).
package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"
)

// =============================================================================
// CONFIG
// =============================================================================

// Config is the explicit provider boundary configuration. The credential is
// read once at startup and handed over here; nothing else reads it.
type Config struct {
	APIKey  string
	Timeout time.Duration

	// MaxRetries bounds retries on rate limiting and transient 5xx responses.
	MaxRetries int
	// RetryBackoff is the base delay, doubled per attempt.
	RetryBackoff time.Duration

	HTTPClient *http.Client
}

// DefaultConfig returns sane defaults around apiKey.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:       apiKey,
		Timeout:      120 * time.Second,
		MaxRetries:   2,
		RetryBackoff: time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("provider API key is required")
	}
	if c.Timeout < 0 || c.MaxRetries < 0 || c.RetryBackoff < 0 {
		return fmt.Errorf("provider timeout, retries, and backoff must not be negative")
	}
	return nil
}

// =============================================================================
// BACKEND
// =============================================================================

// Backend is the slice of the provider SDK the gateway uses.
type Backend interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateVideos(ctx context.Context, model, prompt string, image *genai.Image, cfg *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error)
	GetVideosOperation(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error)
}

// GenAIBackend implements Backend on the Google GenAI SDK.
type GenAIBackend struct {
	client *genai.Client
}

// NewGenAIBackend creates a Gemini API client.
func NewGenAIBackend(ctx context.Context, cfg Config) (*GenAIBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GenAIBackend{client: client}, nil
}

func (b *GenAIBackend) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return b.client.Models.GenerateContent(ctx, model, contents, cfg)
}

func (b *GenAIBackend) GenerateVideos(ctx context.Context, model, prompt string, image *genai.Image, cfg *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error) {
	return b.client.Models.GenerateVideos(ctx, model, prompt, image, cfg)
}

func (b *GenAIBackend) GetVideosOperation(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	return b.client.Operations.GetVideosOperation(ctx, op, nil)
}
