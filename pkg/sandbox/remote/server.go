package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rhuss/codesmith/pkg/api"
	"github.com/rhuss/codesmith/pkg/debug"
	"github.com/rhuss/codesmith/pkg/sandbox"
)

// maxRequestBytes caps the size of an execute request body.
const maxRequestBytes = 10 << 20

// LocalExecutor is the executor wrapped by a sandbox server.
// *sandbox.Local implements it.
type LocalExecutor interface {
	sandbox.Executor
	Supported() []api.Language
	Timeout() time.Duration
}

// Server serves the sandbox REST API in front of a local executor.
type Server struct {
	exec          LocalExecutor
	maxConcurrent int32
	load          atomic.Int32
	started       time.Time
}

// NewServer creates a sandbox server admitting at most maxConcurrent
// runs; further requests are rejected with 429.
func NewServer(exec LocalExecutor, maxConcurrent int) *Server {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Server{
		exec:          exec,
		maxConcurrent: int32(maxConcurrent),
		started:       time.Now(),
	}
}

// Handler returns the routing handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /execute", s.handleExecute)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	current := s.load.Add(1)
	defer s.load.Add(-1)

	if current > s.maxConcurrent {
		writeServerError(w, http.StatusTooManyRequests,
			fmt.Sprintf("at capacity (%d/%d concurrent executions)", current, s.maxConcurrent))
		return
	}

	var req ExecuteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeServerError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeServerError(w, http.StatusBadRequest, "code is required")
		return
	}

	lang := parseLanguage(req.Language)
	ctx := r.Context()
	if timeout := req.Timeout(); timeout > 0 {
		if timeout < s.exec.Timeout() {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
	}

	debug.Log("sandbox", "execute request",
		"language", lang,
		"timeout", req.Timeout(),
		"code", debug.Truncate(req.Code, 120),
	)

	v := s.exec.Execute(ctx, req.Code, lang)
	resp := NewExecuteResponse(v)

	slog.Info("execute complete",
		"language", lang,
		"status", resp.Status,
		"exit_code", resp.ExitCode,
		"duration_ms", resp.ExecutionTimeMs,
		"stdout_len", len(resp.Stdout),
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// parseLanguage also accepts the shell runner, which the classifier
// never produces.
func parseLanguage(s string) api.Language {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "shell", "sh", "bash":
		return sandbox.LanguageShell
	}
	return api.ParseLanguage(s)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string   `json:"status"`
	Languages   []string `json:"languages"`
	Capacity    int      `json:"capacity"`
	CurrentLoad int      `json:"current_load"`
	UptimeSecs  int64    `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	supported := s.exec.Supported()
	langs := make([]string, len(supported))
	for i, l := range supported {
		langs[i] = l.String()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{
		Status:      "healthy",
		Languages:   langs,
		Capacity:    int(s.maxConcurrent),
		CurrentLoad: int(s.load.Load()),
		UptimeSecs:  int64(time.Since(s.started).Seconds()),
	})
}

func writeServerError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
