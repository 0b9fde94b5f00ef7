// Package stub provides deterministic backends that make no remote calls.
package stub

import (
	"context"

	"github.com/rhuss/codesmith/pkg/provider"
)

// GrokContent is the fixed output of the grok backend.
const GrokContent = "# Python\n# Example output from Grok\nprint('Hello from Grok!')"

// DefaultContent is returned by the stub backend when none is configured.
const DefaultContent = "# Python\nprint('hi')"

// Completer always returns the same content.
type Completer struct {
	name    string
	content string
}

var _ provider.Completer = (*Completer)(nil)

// New returns a Completer named name that always answers content.
func New(name, content string) *Completer {
	return &Completer{name: name, content: content}
}

// NewStub returns the "stub" backend. Empty content selects DefaultContent.
func NewStub(content string) *Completer {
	if content == "" {
		content = DefaultContent
	}
	return New(string(provider.BackendStub), content)
}

// NewGrok returns the "grok" backend, which answers GrokContent.
func NewGrok() *Completer {
	return New(string(provider.BackendGrok), GrokContent)
}

// Name implements provider.Completer.
func (c *Completer) Name() string { return c.name }

// Complete returns the fixed content. The prompt and model are ignored.
func (c *Completer) Complete(ctx context.Context, _, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.content, nil
}
