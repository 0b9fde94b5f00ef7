package transport

import (
	"context"

	"github.com/rhuss/codesmith/pkg/api"
)

// CodeHandler runs the generation pipeline for inbound requests.
// *pipeline.Pipeline implements it.
type CodeHandler interface {
	// CreateGeneration generates code for a task, persists it, and
	// executes it. Execution outcomes are part of the response; only
	// generation, storage, and validation failures are errors.
	CreateGeneration(ctx context.Context, req *api.GenerateRequest) (*api.GenerateResponse, error)

	// CreateVerification executes caller-supplied code.
	CreateVerification(ctx context.Context, req *api.VerifyRequest) (*api.VerifyResponse, error)
}

// Summarizer condenses a transcript with a remote backend.
type Summarizer interface {
	Summarize(ctx context.Context, req *api.SummarizeRequest) (string, error)
}

// ArtifactReader reads persisted code by the locator returned at generation.
type ArtifactReader interface {
	Read(ctx context.Context, path string) ([]byte, error)
}

// HealthChecker reports whether a dependency is usable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
