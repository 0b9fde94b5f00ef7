// Package backends wires every generation backend into a provider.Registry.
package backends

import (
	"context"

	"github.com/rhuss/codesmith/pkg/provider"
	"github.com/rhuss/codesmith/pkg/provider/claude"
	"github.com/rhuss/codesmith/pkg/provider/gemini"
	"github.com/rhuss/codesmith/pkg/provider/openai"
	"github.com/rhuss/codesmith/pkg/provider/stub"
)

// Factories returns the factory for each supported backend.
func Factories() map[provider.Backend]provider.Factory {
	return map[provider.Backend]provider.Factory{
		provider.BackendOpenAI: func(s provider.Settings) (provider.Completer, error) {
			return openai.New(openai.Config{APIKey: s.APIKey, BaseURL: s.BaseURL, Timeout: s.Timeout}), nil
		},
		provider.BackendClaude: func(s provider.Settings) (provider.Completer, error) {
			return claude.New(claude.Config{APIKey: s.APIKey, BaseURL: s.BaseURL, Timeout: s.Timeout}), nil
		},
		provider.BackendGemini: func(s provider.Settings) (provider.Completer, error) {
			return gemini.New(context.Background(), gemini.Config{APIKey: s.APIKey, BaseURL: s.BaseURL, Timeout: s.Timeout})
		},
		provider.BackendGrok: func(provider.Settings) (provider.Completer, error) {
			return stub.NewGrok(), nil
		},
		provider.BackendStub: func(s provider.Settings) (provider.Completer, error) {
			return stub.NewStub(s.Content), nil
		},
	}
}

// NewRegistry returns a Registry with all backends registered.
func NewRegistry(settings map[provider.Backend]provider.Settings) *provider.Registry {
	r := provider.NewRegistry(settings)
	for b, f := range Factories() {
		r.Register(b, f)
	}
	return r
}
