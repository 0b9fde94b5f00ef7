package provider

import (
	"context"
	"fmt"
	"strings"
)

// Completer turns a prompt into text using one generation backend.
//
// Implementations must be safe for concurrent use by multiple goroutines,
// must honor ctx cancellation, and must not retry internally.
type Completer interface {
	// Name returns the backend identifier (e.g., "openai", "stub").
	Name() string

	// Complete sends prompt to model and returns the raw response text.
	Complete(ctx context.Context, prompt, model string) (string, error)
}

// Backend identifies one of the supported generation backends.
type Backend string

const (
	BackendOpenAI Backend = "openai"
	BackendClaude Backend = "claude"
	BackendGemini Backend = "gemini"
	BackendGrok   Backend = "grok"
	BackendStub   Backend = "stub"
)

// Backends lists every supported backend.
var Backends = []Backend{BackendOpenAI, BackendClaude, BackendGemini, BackendGrok, BackendStub}

var defaultModels = map[Backend]string{
	BackendOpenAI: "gpt-4",
	BackendClaude: "claude-3-opus-20240229",
	BackendGemini: "gemini-pro",
	BackendGrok:   "grok-1",
	BackendStub:   "stub-1",
}

// ParseBackend resolves a backend name case-insensitively.
func ParseBackend(name string) (Backend, error) {
	b := Backend(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := defaultModels[b]; !ok {
		return "", fmt.Errorf("unknown backend %q", name)
	}
	return b, nil
}

// DefaultModel returns the model used when a task does not name one.
func (b Backend) DefaultModel() string {
	return defaultModels[b]
}

// RequiresCredential reports whether the backend cannot run without an API
// key. OpenAI-compatible servers reached through a custom base URL are
// exempt.
func (b Backend) RequiresCredential(s Settings) bool {
	switch b {
	case BackendOpenAI:
		return s.BaseURL == ""
	case BackendClaude, BackendGemini:
		return true
	default:
		return false
	}
}
