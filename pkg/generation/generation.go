// Package generation turns a task into a persisted, classified artifact
// using one generation backend.
package generation

import (
	"context"
	"strings"
	"time"

	"github.com/rhuss/codesmith/pkg/api"
	"github.com/rhuss/codesmith/pkg/artifact"
	"github.com/rhuss/codesmith/pkg/classify"
	"github.com/rhuss/codesmith/pkg/debug"
	"github.com/rhuss/codesmith/pkg/observability"
	"github.com/rhuss/codesmith/pkg/provider"
)

const promptTemplate = "Generate clean and well-commented code to accomplish the following task:\n\n%s\n\nOnly include the code. Mention the programming language at the top."

// Prompt builds the backend prompt for a task description.
func Prompt(task string) string {
	return strings.Replace(promptTemplate, "%s", task, 1)
}

// Generator produces artifacts with a single backend.
type Generator struct {
	Completer  provider.Completer
	Classifier classify.Classifier
	Store      artifact.Store

	// Clock returns the creation time of artifacts. Defaults to time.Now.
	Clock func() time.Time
}

// Generate asks the backend for code, classifies it, and persists it. An
// empty task.Model selects the backend's default model.
func (g *Generator) Generate(ctx context.Context, task api.GenerationTask) (api.StoredArtifactRef, error) {
	backend := g.Completer.Name()
	model := task.Model
	if model == "" {
		if b, err := provider.ParseBackend(backend); err == nil {
			model = b.DefaultModel()
		}
	}

	start := time.Now()
	text, err := g.Completer.Complete(ctx, Prompt(task.Task), model)
	if err != nil {
		observability.RecordGeneration(backend, model, string(api.ErrorKindBackend), time.Since(start))
		return api.StoredArtifactRef{}, api.NewBackendError(backend, err)
	}

	code := strings.TrimSpace(text)
	if code == "" {
		observability.RecordGeneration(backend, model, string(api.ErrorKindEmptyResult), time.Since(start))
		return api.StoredArtifactRef{}, api.NewEmptyResultError(backend)
	}
	observability.RecordGeneration(backend, model, "success", time.Since(start))

	classifier := g.Classifier
	if classifier == nil {
		classifier = classify.Heuristic{}
	}
	lang := classifier.Classify(code)

	now := time.Now
	if g.Clock != nil {
		now = g.Clock
	}
	created := now()

	path, err := g.Store.Persist(ctx, code, lang, backend, created)
	if err != nil {
		observability.ArtifactWritesTotal.WithLabelValues(artifact.Kind(g.Store), "error").Inc()
		if _, ok := api.AsError(err); !ok {
			err = api.NewStorageError("persist artifact", err)
		}
		return api.StoredArtifactRef{}, err
	}
	observability.ArtifactWritesTotal.WithLabelValues(artifact.Kind(g.Store), "success").Inc()

	debug.Log("generation", "artifact stored",
		"backend", backend,
		"model", model,
		"language", lang,
		"path", path,
		"code_len", len(code),
	)
	if debug.TraceIsEnabled("generation") {
		debug.Raw("generation", code)
	}

	return api.StoredArtifactRef{
		Artifact: api.GeneratedArtifact{
			Code:      code,
			Language:  lang,
			Backend:   backend,
			Model:     model,
			CreatedAt: created,
		},
		Path: path,
	}, nil
}
