package api

import (
	"strings"
	"time"
)

// Language is the canonical tag for a generated artifact's programming language.
type Language string

const (
	LanguagePython     Language = "Python"
	LanguageJavaScript Language = "JavaScript"
	LanguageJava       Language = "Java"
	LanguageHTML       Language = "HTML"
	LanguageCPP        Language = "C++"
	LanguageCSharp     Language = "C#"
	LanguageTypeScript Language = "TypeScript"
	LanguageGo         Language = "Go"
	LanguageUnknown    Language = "Unknown"
)

// Languages lists every known language in classification priority order.
// Unknown is not included.
var Languages = []Language{
	LanguagePython,
	LanguageJavaScript,
	LanguageJava,
	LanguageHTML,
	LanguageCPP,
	LanguageCSharp,
	LanguageTypeScript,
	LanguageGo,
}

var extensions = map[Language]string{
	LanguagePython:     "py",
	LanguageJavaScript: "js",
	LanguageJava:       "java",
	LanguageHTML:       "html",
	LanguageCPP:        "cpp",
	LanguageCSharp:     "cs",
	LanguageTypeScript: "ts",
	LanguageGo:         "go",
}

// Extension returns the file extension (without dot) used when persisting
// code of this language. Unknown and unrecognized languages map to "txt".
func (l Language) Extension() string {
	if ext, ok := extensions[l]; ok {
		return ext
	}
	return "txt"
}

// String implements fmt.Stringer.
func (l Language) String() string {
	if l == "" {
		return string(LanguageUnknown)
	}
	return string(l)
}

// ParseLanguage maps a caller-supplied language name to a Language.
// Matching is case-insensitive and accepts common aliases and file
// extensions ("py", "js", "cpp", "cs", "ts", "golang"). Anything else
// yields LanguageUnknown.
func ParseLanguage(s string) Language {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "python", "py", "python3":
		return LanguagePython
	case "javascript", "js", "node":
		return LanguageJavaScript
	case "java":
		return LanguageJava
	case "html", "htm":
		return LanguageHTML
	case "c++", "cpp", "cxx":
		return LanguageCPP
	case "c#", "cs", "csharp":
		return LanguageCSharp
	case "typescript", "ts":
		return LanguageTypeScript
	case "go", "golang":
		return LanguageGo
	default:
		return LanguageUnknown
	}
}

// GenerationTask is a request to generate code. It is passed by value and
// never modified after submission.
type GenerationTask struct {
	// Task is the free-text task description. Required.
	Task string `json:"task"`

	// Backend selects the generation backend. Empty means the configured default.
	Backend string `json:"backend,omitempty"`

	// Model overrides the backend's default model.
	Model string `json:"model,omitempty"`

	// APIKey overrides the configured backend credential for this task only.
	APIKey string `json:"-"`
}

// GeneratedArtifact is the code produced by one successful generation call.
type GeneratedArtifact struct {
	Code      string    `json:"code"`
	Language  Language  `json:"language"`
	Backend   string    `json:"backend"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// StoredArtifactRef pairs an artifact with the locator it was persisted under.
// It is a plain value: holding one does not keep the stored bytes alive.
type StoredArtifactRef struct {
	Artifact GeneratedArtifact `json:"artifact"`
	Path     string            `json:"path"`
}

// ExecutionState is the per-run sandbox state.
type ExecutionState string

const (
	ExecutionIdle        ExecutionState = "idle"
	ExecutionRunning     ExecutionState = "running"
	ExecutionSucceeded   ExecutionState = "succeeded"
	ExecutionFaulted     ExecutionState = "faulted"
	ExecutionTimedOut    ExecutionState = "timed_out"
	ExecutionUnsupported ExecutionState = "unsupported"
)

// Terminal reports whether no further transitions are allowed from s.
func (s ExecutionState) Terminal() bool {
	switch s {
	case ExecutionSucceeded, ExecutionFaulted, ExecutionTimedOut, ExecutionUnsupported:
		return true
	}
	return false
}

// Failure reasons reported by the sandbox for runs that did not complete.
const (
	ReasonUnsupportedLanguage = "unsupported language"
	ReasonTimeout             = "timeout"
	ReasonCancelled           = "cancelled"
)

// ExecutionVerdict is the structured, terminal outcome of one sandbox run.
// Success is false iff the run faulted or the sandbox could not complete it,
// in which case FailureReason is set and Stdout/Stderr hold partial output.
type ExecutionVerdict struct {
	Success       bool           `json:"success"`
	Stdout        string         `json:"stdout"`
	Stderr        string         `json:"stderr"`
	FailureReason string         `json:"failure_reason,omitempty"`
	ExitCode      int            `json:"exit_code"`
	Duration      time.Duration  `json:"duration"`
	State         ExecutionState `json:"state"`
}

// Unsupported returns the verdict for a language without a registered runner.
func Unsupported() ExecutionVerdict {
	return ExecutionVerdict{
		FailureReason: ReasonUnsupportedLanguage,
		ExitCode:      -1,
		State:         ExecutionUnsupported,
	}
}

// TestOutput converts the verdict to the {success, output, error} shape
// returned to callers. The error text is the failure reason followed by
// any captured stderr.
func (v ExecutionVerdict) TestOutput() TestOutput {
	var parts []string
	if v.FailureReason != "" {
		parts = append(parts, v.FailureReason)
	}
	if v.Stderr != "" && v.Stderr != v.FailureReason {
		parts = append(parts, v.Stderr)
	}
	return TestOutput{
		Success: v.Success,
		Output:  v.Stdout,
		Error:   strings.Join(parts, "\n"),
	}
}

// --- Transport shapes ---

// GenerateRequest is the inbound body for code generation.
type GenerateRequest struct {
	Task    string `json:"task"`
	Backend string `json:"backend,omitempty"`
	Model   string `json:"model,omitempty"`

	// Provider is accepted as an alias of Backend.
	Provider string `json:"provider,omitempty"`

	// APIKey overrides the configured credential for this request.
	APIKey string `json:"api_key,omitempty"`
}

// GenerationTask converts the request into a GenerationTask.
func (r *GenerateRequest) GenerationTask() GenerationTask {
	backend := r.Backend
	if backend == "" {
		backend = r.Provider
	}
	return GenerationTask{
		Task:    r.Task,
		Backend: backend,
		Model:   r.Model,
		APIKey:  r.APIKey,
	}
}

// TestOutput is the caller-facing summary of an ExecutionVerdict.
type TestOutput struct {
	Success bool   `json:"success"`
	Output  string `json:"output"`
	Error   string `json:"error"`
}

// GenerateResponse is the outbound body for code generation.
type GenerateResponse struct {
	ID         string     `json:"id,omitempty"`
	Code       string     `json:"code"`
	Language   string     `json:"language"`
	FilePath   string     `json:"file_path"`
	TestOutput TestOutput `json:"test_output"`
}

// NewGenerateResponse builds the outbound body from a stored ref and verdict.
func NewGenerateResponse(id string, ref StoredArtifactRef, v ExecutionVerdict) *GenerateResponse {
	return &GenerateResponse{
		ID:         id,
		Code:       ref.Artifact.Code,
		Language:   ref.Artifact.Language.String(),
		FilePath:   ref.Path,
		TestOutput: v.TestOutput(),
	}
}

// VerifyRequest is the inbound body for verify-only runs. Language is
// optional; when empty the configured default language (Python) is used.
type VerifyRequest struct {
	Code     string `json:"code"`
	Language string `json:"language,omitempty"`
}

// VerifyResponse is the outbound body for verify-only runs.
type VerifyResponse struct {
	ID       string `json:"id,omitempty"`
	Language string `json:"language"`
	TestOutput
}

// SummarizeRequest is the inbound body for transcript summarization.
type SummarizeRequest struct {
	Transcript string `json:"transcript"`
	Backend    string `json:"backend,omitempty"`
	APIKey     string `json:"api_key,omitempty"`
}

// SummarizeResponse is the outbound body for transcript summarization.
type SummarizeResponse struct {
	Summary string `json:"summary"`
}
