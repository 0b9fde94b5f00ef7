package pipeline

import (
	"context"

	"github.com/rhuss/codesmith/pkg/api"
)

// CreateGeneration serves an inbound generation request.
func (p *Pipeline) CreateGeneration(ctx context.Context, req *api.GenerateRequest) (*api.GenerateResponse, error) {
	res, err := p.Run(ctx, req.GenerationTask())
	if err != nil {
		return nil, err
	}
	return api.NewGenerateResponse(res.ID, res.Ref, res.Verdict), nil
}

// CreateVerification serves an inbound verify-only request.
func (p *Pipeline) CreateVerification(ctx context.Context, req *api.VerifyRequest) (*api.VerifyResponse, error) {
	res, err := p.Verify(ctx, req.Code, api.Language(req.Language))
	if err != nil {
		return nil, err
	}
	return &api.VerifyResponse{
		ID:         res.ID,
		Language:   res.Ref.Artifact.Language.String(),
		TestOutput: res.Verdict.TestOutput(),
	}, nil
}
