package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/rhuss/codesmith/pkg/api"
	"github.com/rhuss/codesmith/pkg/artifact"
	"github.com/rhuss/codesmith/pkg/pipeline"
	"github.com/rhuss/codesmith/pkg/provider/backends"
	"github.com/rhuss/codesmith/pkg/sandbox"
)

type langExecutor struct{ got api.Language }

func (e *langExecutor) Execute(_ context.Context, _ string, lang api.Language) api.ExecutionVerdict {
	e.got = lang
	return api.ExecutionVerdict{Success: true, Stdout: "hi", State: api.ExecutionSucceeded}
}

func newPipelineServer(t *testing.T, exec sandbox.Executor) *httptest.Server {
	t.Helper()
	p := pipeline.New(backends.NewRegistry(nil), artifact.NewFileStore(t.TempDir()), exec)
	srv := httptest.NewServer(NewAdapter(p).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestTestCodeWithoutLanguageRunsPython(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"print", "print('hi')"},
		{"json import", "import json\nprint('hi')"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := &langExecutor{}
			srv := newPipelineServer(t, ex)

			resp := postJSON(t, srv, "/test-code", map[string]string{"code": tt.code})
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want 200", resp.StatusCode)
			}
			body := decodeBody[api.VerifyResponse](t, resp)
			if ex.got != api.LanguagePython {
				t.Errorf("executed as %q, want Python", ex.got)
			}
			if body.Language != "Python" {
				t.Errorf("language = %q, want Python", body.Language)
			}
		})
	}
}

func TestTestCodeHeaderlessPythonEndToEnd(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not installed")
	}
	srv := newPipelineServer(t, sandbox.NewLocal(sandbox.Config{Timeout: 10 * time.Second}))

	resp := postJSON(t, srv, "/test-code", map[string]string{"code": "print('hi')"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody[api.VerifyResponse](t, resp)
	if !body.Success {
		t.Fatalf("success = false, error = %q", body.Error)
	}
	if body.Output != "hi" {
		t.Errorf("output = %q, want hi", body.Output)
	}
}
