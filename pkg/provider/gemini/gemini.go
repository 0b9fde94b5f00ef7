// Package gemini implements the gemini backend with the Google Gen AI SDK.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"

	"github.com/rhuss/codesmith/pkg/debug"
	"github.com/rhuss/codesmith/pkg/provider"
)

// Config holds the settings for the gemini backend.
type Config struct {
	APIKey string

	// BaseURL overrides the Gemini API endpoint.
	BaseURL string

	Timeout time.Duration
}

// Completer calls models.generateContent.
type Completer struct {
	client *genai.Client
}

var _ provider.Completer = (*Completer)(nil)

// New creates a gemini Completer.
func New(ctx context.Context, cfg Config) (*Completer, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Completer{client: client}, nil
}

// Name implements provider.Completer.
func (c *Completer) Name() string { return string(provider.BackendGemini) }

// Complete sends prompt as a single user turn and returns the text of the
// first candidate.
func (c *Completer) Complete(ctx context.Context, prompt, model string) (string, error) {
	debug.Log("providers", "gemini request", "model", model, "prompt_len", len(prompt))

	resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", nil
	}
	return resp.Text(), nil
}
