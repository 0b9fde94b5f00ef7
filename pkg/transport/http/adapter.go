package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/rhuss/codesmith/pkg/api"
	"github.com/rhuss/codesmith/pkg/history"
	"github.com/rhuss/codesmith/pkg/transport"
)

// Adapter serves the codesmith API over HTTP.
// It routes requests to the handlers and serializes their results.
type Adapter struct {
	code transport.CodeHandler

	// Optional handlers; nil disables their endpoints.
	summarizer transport.Summarizer
	history    history.Store
	artifacts  transport.ArtifactReader

	readiness map[string]transport.HealthChecker
	mux       *http.ServeMux
	config    Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64
	Validation  api.ValidationConfig
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 10 << 20, // 10 MB
		Validation:  api.DefaultValidationConfig(),
	}
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithSummarizer enables the summarize endpoints.
func WithSummarizer(s transport.Summarizer) Option {
	return func(a *Adapter) { a.summarizer = s }
}

// WithHistory enables the verification history endpoints. The store is
// also checked by the readiness probe.
func WithHistory(h history.Store) Option {
	return func(a *Adapter) {
		a.history = h
		if h != nil {
			a.readiness["history"] = h
		}
	}
}

// WithArtifacts enables reading persisted code.
func WithArtifacts(r transport.ArtifactReader) Option {
	return func(a *Adapter) { a.artifacts = r }
}

// WithReadinessCheck adds a dependency checked by GET /readyz.
func WithReadinessCheck(name string, c transport.HealthChecker) Option {
	return func(a *Adapter) { a.readiness[name] = c }
}

// WithConfig replaces the adapter configuration.
func WithConfig(cfg Config) Option {
	return func(a *Adapter) { a.config = cfg }
}

// NewAdapter creates an HTTP adapter for the given CodeHandler.
func NewAdapter(code transport.CodeHandler, opts ...Option) *Adapter {
	a := &Adapter{
		code:      code,
		readiness: make(map[string]transport.HealthChecker),
		mux:       http.NewServeMux(),
		config:    DefaultConfig(),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.mux.HandleFunc("POST /v1/generate", a.handleGenerate)
	a.mux.HandleFunc("POST /generate-code", a.handleGenerate)
	a.mux.HandleFunc("POST /v1/verify", a.handleVerify)
	a.mux.HandleFunc("POST /test-code", a.handleVerify)
	a.mux.HandleFunc("POST /v1/summarize", a.handleSummarize)
	a.mux.HandleFunc("POST /summarize", a.handleSummarize)
	a.mux.HandleFunc("GET /v1/verifications/{id}", a.handleGetVerification)
	a.mux.HandleFunc("GET /v1/verifications", a.handleListVerifications)
	a.mux.HandleFunc("GET /v1/artifacts", a.handleGetArtifact)
	a.mux.HandleFunc("GET /healthz", a.handleHealthz)
	a.mux.HandleFunc("GET /readyz", a.handleReadyz)

	return a
}

// Handle mounts an additional handler, such as the metrics or MCP endpoint.
func (a *Adapter) Handle(pattern string, h http.Handler) {
	a.mux.Handle(pattern, h)
}

// Handler returns the routing handler. Wrap it with middleware before
// serving; metrics middleware must wrap it directly to see route patterns.
func (a *Adapter) Handler() http.Handler {
	return a.mux
}

// handleGenerate handles POST /v1/generate.
func (a *Adapter) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req api.GenerateRequest
	if !a.decode(w, r, &req) {
		return
	}

	resp, err := a.code.CreateGeneration(r.Context(), &req)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleVerify handles POST /v1/verify.
func (a *Adapter) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req api.VerifyRequest
	if !a.decode(w, r, &req) {
		return
	}

	resp, err := a.code.CreateVerification(r.Context(), &req)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSummarize handles POST /v1/summarize.
func (a *Adapter) handleSummarize(w http.ResponseWriter, r *http.Request) {
	if a.summarizer == nil {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("", "summarization is not available"),
			http.StatusNotImplemented,
		)
		return
	}

	var req api.SummarizeRequest
	if !a.decode(w, r, &req) {
		return
	}

	summary, err := a.summarizer.Summarize(r.Context(), &req)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.SummarizeResponse{Summary: summary})
}

// handleGetVerification handles GET /v1/verifications/{id}.
func (a *Adapter) handleGetVerification(w http.ResponseWriter, r *http.Request) {
	if a.history == nil {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("", "verification history is not available (no store configured)"),
			http.StatusNotImplemented,
		)
		return
	}

	id := r.PathValue("id")
	if !api.ValidateVerificationID(id) {
		transport.WriteAPIError(w, api.NewInvalidRequestError("id", "malformed verification ID"))
		return
	}

	rec, err := a.history.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			transport.WriteAPIError(w, api.NewNotFoundError("verification "+id+" not found"))
			return
		}
		transport.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleListVerifications handles GET /v1/verifications.
func (a *Adapter) handleListVerifications(w http.ResponseWriter, r *http.Request) {
	if a.history == nil {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("", "verification history is not available (no store configured)"),
			http.StatusNotImplemented,
		)
		return
	}

	opts, apiErr := parseListOptions(r)
	if apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	page, err := a.history.List(r.Context(), opts)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// artifactResponse is the body returned for a persisted artifact.
type artifactResponse struct {
	Path    string `json:"file_path"`
	Content string `json:"content"`
}

// handleGetArtifact handles GET /v1/artifacts?path=.
func (a *Adapter) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	if a.artifacts == nil {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("", "artifact retrieval is not available"),
			http.StatusNotImplemented,
		)
		return
	}

	path := r.URL.Query().Get("path")
	if path == "" {
		transport.WriteAPIError(w, api.NewInvalidRequestError("path", "path is required"))
		return
	}

	data, err := a.artifacts.Read(r.Context(), path)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, artifactResponse{Path: path, Content: string(data)})
}

func (a *Adapter) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// handleReadyz reports 503 when any registered dependency fails its check.
func (a *Adapter) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(a.readiness))
	for name, c := range a.readiness {
		if err := c.HealthCheck(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	writeJSON(w, status, map[string]any{"status": state, "checks": checks})
}

// decode validates the content type, limits the body size, and decodes
// the JSON body into v. It writes the error response and returns false
// on failure.
func (a *Adapter) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
				http.StatusUnsupportedMediaType,
			)
			return false
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return false
		}
		transport.WriteAPIError(w, api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()))
		return false
	}
	return true
}

// parseListOptions extracts pagination and filter parameters.
func parseListOptions(r *http.Request) (history.ListOptions, *api.Error) {
	q := r.URL.Query()
	opts := history.ListOptions{After: q.Get("after")}

	if opts.After != "" && !api.ValidateVerificationID(opts.After) {
		return opts, api.NewInvalidRequestError("after", "malformed verification ID")
	}

	switch kind := history.Kind(q.Get("kind")); kind {
	case "", history.KindGenerate, history.KindVerify:
		opts.Kind = kind
	default:
		return opts, api.NewInvalidRequestError("kind", "kind must be 'generate' or 'verify'")
	}

	if lang := q.Get("language"); lang != "" {
		opts.Language = api.ParseLanguage(lang)
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return opts, api.NewInvalidRequestError("limit", "limit must be a positive integer")
		}
		opts.Limit = limit
	}

	return opts, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
