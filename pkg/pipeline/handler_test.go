package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhuss/codesmith/pkg/api"
)

func TestCreateGeneration(t *testing.T) {
	ex := &recordingExecutor{verdict: api.ExecutionVerdict{
		Stdout:        "partial",
		Stderr:        "Traceback: boom",
		FailureReason: "boom",
		ExitCode:      1,
		State:         api.ExecutionFaulted,
	}}
	p, _ := newPipeline(t, ex)

	resp, err := p.CreateGeneration(context.Background(), &api.GenerateRequest{Task: "say hi", Provider: "stub"})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "Python", resp.Language)
	assert.Equal(t, "# Python\nprint('hi')", resp.Code)
	assert.FileExists(t, resp.FilePath)
	assert.False(t, resp.TestOutput.Success)
	assert.Equal(t, "partial", resp.TestOutput.Output)
	assert.Equal(t, "boom\nTraceback: boom", resp.TestOutput.Error)
}

func TestCreateGenerationError(t *testing.T) {
	p, _ := newPipeline(t, &recordingExecutor{})

	_, err := p.CreateGeneration(context.Background(), &api.GenerateRequest{Task: "x", Backend: "nope"})
	assert.Equal(t, api.ErrorKindConfiguration, api.KindOf(err))
}

func TestCreateVerification(t *testing.T) {
	ex := &recordingExecutor{verdict: succeeded("ok\n")}
	p, _ := newPipeline(t, ex)

	resp, err := p.CreateVerification(context.Background(), &api.VerifyRequest{Code: "console.log('ok')", Language: "js"})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "JavaScript", resp.Language)
	assert.True(t, resp.Success)
	assert.Equal(t, "ok\n", resp.Output)
	assert.Empty(t, resp.Error)
	require.Len(t, ex.calls, 1)
	assert.Equal(t, api.LanguageJavaScript, ex.calls[0].lang)
}
