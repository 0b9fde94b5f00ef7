// Package summarize condenses transcripts with a generation backend.
package summarize

import (
	"context"
	"strings"
	"time"

	"github.com/rhuss/codesmith/pkg/api"
	"github.com/rhuss/codesmith/pkg/debug"
	"github.com/rhuss/codesmith/pkg/observability"
	"github.com/rhuss/codesmith/pkg/pipeline"
	"github.com/rhuss/codesmith/pkg/provider"
)

const promptPrefix = "Summarize the following text concisely:\n\n"

// Prompt builds the summarization prompt for text.
func Prompt(text string) string {
	return promptPrefix + text
}

// Summarizer produces summaries with a configured default backend.
type Summarizer struct {
	backends       pipeline.Backends
	defaultBackend string
	validation     api.ValidationConfig
}

// New creates a Summarizer. An empty defaultBackend falls back to
// pipeline.DefaultBackend.
func New(backends pipeline.Backends, defaultBackend string) *Summarizer {
	if defaultBackend == "" {
		defaultBackend = pipeline.DefaultBackend
	}
	return &Summarizer{
		backends:       backends,
		defaultBackend: defaultBackend,
		validation:     api.DefaultValidationConfig(),
	}
}

// Summarize returns a concise summary of req.Transcript.
func (s *Summarizer) Summarize(ctx context.Context, req *api.SummarizeRequest) (string, error) {
	if err := api.ValidateSummarizeRequest(req, s.validation); err != nil {
		return "", err
	}

	name := strings.TrimSpace(req.Backend)
	if name == "" {
		name = s.defaultBackend
	}
	completer, err := s.backends.Completer(name, req.APIKey)
	if err != nil {
		return "", err
	}
	backend := completer.Name()
	model := s.backends.Model(provider.Backend(backend), "")

	debug.Log("providers", "summarize", "backend", backend, "model", model, "transcript_len", len(req.Transcript))

	start := time.Now()
	text, err := completer.Complete(ctx, Prompt(req.Transcript), model)
	if err != nil {
		observability.RecordGeneration(backend, model, string(api.ErrorKindBackend), time.Since(start))
		return "", api.NewBackendError(backend, err)
	}
	summary := strings.TrimSpace(text)
	if summary == "" {
		observability.RecordGeneration(backend, model, string(api.ErrorKindEmptyResult), time.Since(start))
		return "", api.NewEmptyResultError(backend)
	}
	observability.RecordGeneration(backend, model, "success", time.Since(start))
	return summary, nil
}
