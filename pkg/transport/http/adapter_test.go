package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rhuss/codesmith/pkg/api"
	"github.com/rhuss/codesmith/pkg/artifact"
	"github.com/rhuss/codesmith/pkg/history"
	"github.com/rhuss/codesmith/pkg/history/memory"
)

// mockCode is a configurable CodeHandler for testing.
type mockCode struct {
	err error

	gotGenerate *api.GenerateRequest
	gotVerify   *api.VerifyRequest
}

func (m *mockCode) CreateGeneration(_ context.Context, req *api.GenerateRequest) (*api.GenerateResponse, error) {
	m.gotGenerate = req
	if m.err != nil {
		return nil, m.err
	}
	return &api.GenerateResponse{
		ID:         "ver_0123456789abcdef0123456789abcdef",
		Code:       "# Python\nprint('hi')",
		Language:   "Python",
		FilePath:   "generated_code/stub_python_20240301_123045_abcd1234.py",
		TestOutput: api.TestOutput{Success: true, Output: "hi\n"},
	}, nil
}

func (m *mockCode) CreateVerification(_ context.Context, req *api.VerifyRequest) (*api.VerifyResponse, error) {
	m.gotVerify = req
	if m.err != nil {
		return nil, m.err
	}
	return &api.VerifyResponse{
		Language:   "Python",
		TestOutput: api.TestOutput{Success: false, Output: "", Error: "boom\nTraceback"},
	}, nil
}

type mockSummarizer struct {
	summary string
	err     error
}

func (m *mockSummarizer) Summarize(_ context.Context, req *api.SummarizeRequest) (string, error) {
	return m.summary, m.err
}

type failingCheck struct{}

func (failingCheck) HealthCheck(context.Context) error { return errors.New("connection refused") }

func newTestServer(t *testing.T, code *mockCode, opts ...Option) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewAdapter(code, opts...).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, srv *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return v
}

func TestGenerateReturnsJSON(t *testing.T) {
	for _, path := range []string{"/v1/generate", "/generate-code"} {
		t.Run(path, func(t *testing.T) {
			code := &mockCode{}
			srv := newTestServer(t, code)

			resp := postJSON(t, srv, path, map[string]string{"task": "say hi", "provider": "stub", "api_key": "k"})
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want 200", resp.StatusCode)
			}

			body := decodeBody[map[string]any](t, resp)
			if body["language"] != "Python" {
				t.Errorf("language = %v, want Python", body["language"])
			}
			if _, ok := body["file_path"]; !ok {
				t.Error("missing file_path")
			}
			out, _ := body["test_output"].(map[string]any)
			if out["success"] != true || out["output"] != "hi\n" {
				t.Errorf("test_output = %v", out)
			}

			task := code.gotGenerate.GenerationTask()
			if task.Backend != "stub" || task.APIKey != "k" {
				t.Errorf("task = %+v, want backend stub with api key", task)
			}
		})
	}
}

func TestVerifyReturnsJSON(t *testing.T) {
	for _, path := range []string{"/v1/verify", "/test-code"} {
		t.Run(path, func(t *testing.T) {
			code := &mockCode{}
			srv := newTestServer(t, code)

			resp := postJSON(t, srv, path, map[string]string{"code": "raise Exception('boom')", "language": "python"})
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want 200", resp.StatusCode)
			}

			body := decodeBody[map[string]any](t, resp)
			if body["success"] != false || body["error"] != "boom\nTraceback" {
				t.Errorf("body = %v", body)
			}
			if code.gotVerify.Language != "python" {
				t.Errorf("language = %q, want python", code.gotVerify.Language)
			}
		})
	}
}

func TestInvalidJSONBodyReturns400(t *testing.T) {
	srv := newTestServer(t, &mockCode{})

	resp, err := http.Post(srv.URL+"/v1/generate", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeBody[api.ErrorResponse](t, resp)
	if body.Error.Kind != api.ErrorKindInvalidRequest || body.Error.Param != "body" {
		t.Errorf("error = %+v", body.Error)
	}
}

func TestOversizedBodyReturns413(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBodySize = 64
	srv := newTestServer(t, &mockCode{}, WithConfig(cfg))

	resp := postJSON(t, srv, "/v1/verify", map[string]string{"code": strings.Repeat("x", 200)})
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", resp.StatusCode)
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        int
	}{
		{"application/json", http.StatusOK},
		{"application/json; charset=utf-8", http.StatusOK},
		{"text/plain", http.StatusUnsupportedMediaType},
	}

	srv := newTestServer(t, &mockCode{})
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/v1/verify", tt.contentType, strings.NewReader(`{"code":"print(1)"}`))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   api.ErrorKind
	}{
		{"unknown backend", api.NewConfigurationError("cohere", `unknown backend "cohere"`), http.StatusBadRequest, api.ErrorKindConfiguration},
		{"missing credential", api.NewMissingCredentialError("claude"), http.StatusServiceUnavailable, api.ErrorKindConfiguration},
		{"backend failure", api.NewBackendError("openai", errors.New("HTTP 500")), http.StatusBadGateway, api.ErrorKindBackend},
		{"empty result", api.NewEmptyResultError("gemini"), http.StatusBadGateway, api.ErrorKindEmptyResult},
		{"storage", api.NewStorageError("write artifact", errors.New("disk full")), http.StatusInternalServerError, api.ErrorKindStorage},
		{"invalid", api.NewInvalidRequestError("task", "task is required"), http.StatusBadRequest, api.ErrorKindInvalidRequest},
		{"untyped", errors.New("surprise"), http.StatusInternalServerError, api.ErrorKindServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &mockCode{err: tt.err})

			resp := postJSON(t, srv, "/v1/generate", map[string]string{"task": "x"})
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			body := decodeBody[api.ErrorResponse](t, resp)
			if body.Error.Kind != tt.wantKind {
				t.Errorf("error type = %q, want %q", body.Error.Kind, tt.wantKind)
			}
		})
	}
}

func TestUnknownPathReturns404(t *testing.T) {
	srv := newTestServer(t, &mockCode{})

	resp, err := http.Get(srv.URL + "/v1/nope")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &mockCode{})

	resp, err := http.Get(srv.URL + "/v1/generate")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestSummarize(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := newTestServer(t, &mockCode{}, WithSummarizer(&mockSummarizer{summary: "short"}))
		resp := postJSON(t, srv, "/summarize", map[string]string{"transcript": "a long talk"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		if got := decodeBody[api.SummarizeResponse](t, resp); got.Summary != "short" {
			t.Errorf("summary = %q, want %q", got.Summary, "short")
		}
	})

	t.Run("backend error", func(t *testing.T) {
		srv := newTestServer(t, &mockCode{}, WithSummarizer(&mockSummarizer{err: api.NewEmptyResultError("openai")}))
		resp := postJSON(t, srv, "/v1/summarize", map[string]string{"transcript": "a long talk"})
		if resp.StatusCode != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", resp.StatusCode)
		}
	})

	t.Run("not configured", func(t *testing.T) {
		srv := newTestServer(t, &mockCode{})
		resp := postJSON(t, srv, "/v1/summarize", map[string]string{"transcript": "a long talk"})
		if resp.StatusCode != http.StatusNotImplemented {
			t.Errorf("status = %d, want 501", resp.StatusCode)
		}
	})
}

func seedHistory(t *testing.T, n int) (*memory.Store, []string) {
	t.Helper()
	store, err := memory.New(100)
	if err != nil {
		t.Fatal(err)
	}
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < n; i++ {
		kind := history.KindGenerate
		if i%2 == 1 {
			kind = history.KindVerify
		}
		rec := &history.Record{
			ID:        api.NewVerificationID(),
			Kind:      kind,
			Language:  api.LanguagePython,
			Verdict:   api.ExecutionVerdict{Success: true, State: api.ExecutionSucceeded},
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := store.Save(context.Background(), rec); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, rec.ID)
	}
	return store, ids
}

func TestListVerifications(t *testing.T) {
	store, ids := seedHistory(t, 5)
	srv := newTestServer(t, &mockCode{}, WithHistory(store))

	resp, err := http.Get(srv.URL + "/v1/verifications?limit=2")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	page := decodeBody[history.Page](t, resp)
	if len(page.Data) != 2 || !page.HasMore {
		t.Fatalf("page = %d records, has_more %v; want 2, true", len(page.Data), page.HasMore)
	}
	if page.FirstID != ids[4] || page.LastID != ids[3] {
		t.Errorf("page ids = %s..%s, want newest first", page.FirstID, page.LastID)
	}

	resp2, err := http.Get(srv.URL + "/v1/verifications?kind=generate&after=" + page.LastID)
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	next := decodeBody[history.Page](t, resp2)
	if len(next.Data) != 2 {
		t.Fatalf("next page = %d records, want 2", len(next.Data))
	}
	for _, rec := range next.Data {
		if rec.Kind != history.KindGenerate {
			t.Errorf("kind = %q, want generate", rec.Kind)
		}
	}
}

func TestListVerificationsBadQuery(t *testing.T) {
	store, _ := seedHistory(t, 1)
	srv := newTestServer(t, &mockCode{}, WithHistory(store))

	for _, q := range []string{"limit=0", "limit=abc", "kind=deploy", "after=resp_123"} {
		t.Run(q, func(t *testing.T) {
			resp, err := http.Get(srv.URL + "/v1/verifications?" + q)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestGetVerification(t *testing.T) {
	store, ids := seedHistory(t, 1)
	srv := newTestServer(t, &mockCode{}, WithHistory(store))

	tests := []struct {
		id   string
		want int
	}{
		{ids[0], http.StatusOK},
		{api.NewVerificationID(), http.StatusNotFound},
		{"not-an-id", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			resp, err := http.Get(srv.URL + "/v1/verifications/" + tt.id)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if tt.want == http.StatusOK {
				rec := decodeBody[history.Record](t, resp)
				if rec.ID != tt.id || rec.Language != api.LanguagePython {
					t.Errorf("record = %+v", rec)
				}
			}
		})
	}
}

func TestHistoryEndpointsWithoutStore(t *testing.T) {
	srv := newTestServer(t, &mockCode{})

	for _, path := range []string{"/v1/verifications", "/v1/verifications/" + api.NewVerificationID()} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotImplemented {
			t.Errorf("%s: status = %d, want 501", path, resp.StatusCode)
		}
	}
}

func TestGetArtifact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stub_python_20240301_123045_abcd1234.py")
	if err := os.WriteFile(path, []byte("print('hi')"), 0o644); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, &mockCode{}, WithArtifacts(artifact.NewFileStore(dir)))

	tests := []struct {
		name string
		path string
		want int
	}{
		{"stored", path, http.StatusOK},
		{"missing", filepath.Join(dir, "nope.py"), http.StatusNotFound},
		{"outside root", "/etc/passwd", http.StatusNotFound},
		{"empty", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + "/v1/artifacts?path=" + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if tt.want == http.StatusOK {
				body := decodeBody[artifactResponse](t, resp)
				if body.Content != "print('hi')" {
					t.Errorf("content = %q", body.Content)
				}
			}
		})
	}
}

func TestHealthAndReadiness(t *testing.T) {
	t.Run("healthz", func(t *testing.T) {
		srv := newTestServer(t, &mockCode{})
		resp, err := http.Get(srv.URL + "/healthz")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK || string(body) != "ok\n" {
			t.Errorf("healthz = %d %q", resp.StatusCode, body)
		}
	})

	t.Run("ready", func(t *testing.T) {
		store, _ := seedHistory(t, 0)
		srv := newTestServer(t, &mockCode{}, WithHistory(store))
		resp, err := http.Get(srv.URL + "/readyz")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
	})

	t.Run("not ready", func(t *testing.T) {
		srv := newTestServer(t, &mockCode{}, WithReadinessCheck("sandbox", failingCheck{}))
		resp, err := http.Get(srv.URL + "/readyz")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", resp.StatusCode)
		}
		body := decodeBody[map[string]any](t, resp)
		checks, _ := body["checks"].(map[string]any)
		if checks["sandbox"] != "connection refused" {
			t.Errorf("checks = %v", checks)
		}
	})
}

func TestHandleMountsExtraRoutes(t *testing.T) {
	a := NewAdapter(&mockCode{})
	a.Handle("GET /metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "metrics")
	}))

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Body.String() != "metrics" {
		t.Errorf("body = %q, want metrics", rec.Body.String())
	}
}
