// Package openai implements the openai backend with go-openai. A custom
// base URL points it at any OpenAI-compatible Chat Completions server
// (vLLM, LiteLLM, the mock backend).
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/rhuss/codesmith/pkg/debug"
	"github.com/rhuss/codesmith/pkg/provider"
)

// Config holds the settings for the openai backend.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Completer calls the Chat Completions API.
type Completer struct {
	client *goopenai.Client
}

var _ provider.Completer = (*Completer)(nil)

// New creates an openai Completer.
func New(cfg Config) *Completer {
	c := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	c.HTTPClient = &http.Client{Timeout: timeout}
	return &Completer{client: goopenai.NewClientWithConfig(c)}
}

// Name implements provider.Completer.
func (c *Completer) Name() string { return string(provider.BackendOpenAI) }

// Complete sends prompt as a single user message.
func (c *Completer) Complete(ctx context.Context, prompt, model string) (string, error) {
	debug.Log("providers", "openai request", "model", model, "prompt_len", len(prompt))

	resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("HTTP %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
