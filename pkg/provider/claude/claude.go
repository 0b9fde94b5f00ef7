// Package claude implements the claude backend on the Anthropic Messages
// API through the official Go SDK.
package claude

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/rhuss/codesmith/pkg/debug"
	"github.com/rhuss/codesmith/pkg/provider"
)

const defaultMaxTokens = 4096

// Config holds the settings for the claude backend.
type Config struct {
	APIKey    string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

// Completer sends prompts to the Messages API.
type Completer struct {
	client    anthropic.Client
	maxTokens int64
}

var _ provider.Completer = (*Completer)(nil)

// New creates a claude Completer. Retries are left to the caller, so one
// Complete is one request.
func New(cfg Config) *Completer {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(timeout),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")+"/"))
	}
	return &Completer{
		client:    anthropic.NewClient(opts...),
		maxTokens: int64(maxTokens),
	}
}

// Name implements provider.Completer.
func (c *Completer) Name() string { return string(provider.BackendClaude) }

// Complete sends prompt as a single user message and joins the text blocks
// of the reply.
func (c *Completer) Complete(ctx context.Context, prompt, model string) (string, error) {
	debug.Log("providers", "claude request", "model", model, "prompt_len", len(prompt))

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("HTTP %d: %w", apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("claude request failed: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	debug.Log("providers", "claude response", "model", msg.Model, "stop_reason", msg.StopReason, "output_tokens", msg.Usage.OutputTokens)
	return b.String(), nil
}
