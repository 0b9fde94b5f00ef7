// Package remote runs code on a sandbox server over HTTP.
//
// The sandbox server (cmd/sandbox-server) wraps the local subprocess
// executor behind POST /execute. Servers are located through an Acquirer:
// a static URL for development, or a per-run Kubernetes SandboxClaim.
package remote

import (
	"strconv"
	"time"

	"github.com/rhuss/codesmith/pkg/api"
)

// ExecuteRequest is the request body for POST /execute on the sandbox server.
// TimeoutMs takes precedence over TimeoutSeconds when both are set.
type ExecuteRequest struct {
	Code           string `json:"code"`
	Language       string `json:"language"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
	TimeoutMs      int64  `json:"timeout_ms,omitempty"`
}

// NewExecuteRequest builds a request carrying timeout in milliseconds and,
// rounded up to at least one, in seconds.
func NewExecuteRequest(code string, lang api.Language, timeout time.Duration) *ExecuteRequest {
	req := &ExecuteRequest{Code: code, Language: lang.String()}
	if timeout > 0 {
		req.TimeoutMs = max(timeout.Milliseconds(), 1)
		req.TimeoutSeconds = int((timeout + time.Second - 1) / time.Second)
	}
	return req
}

// Timeout returns the requested execution budget, or zero if none was set.
func (r *ExecuteRequest) Timeout() time.Duration {
	switch {
	case r.TimeoutMs > 0:
		return time.Duration(r.TimeoutMs) * time.Millisecond
	case r.TimeoutSeconds > 0:
		return time.Duration(r.TimeoutSeconds) * time.Second
	}
	return 0
}

// ExecuteResponse is the response from POST /execute on the sandbox server.
type ExecuteResponse struct {
	Status          string `json:"status"`
	Stdout          string `json:"stdout"`
	Stderr          string `json:"stderr"`
	ExitCode        int    `json:"exit_code"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
	FailureReason   string `json:"failure_reason,omitempty"`
}

// Status values reported by the sandbox server.
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusTimeout     = "timeout"
	StatusUnsupported = "unsupported"
)

var stateToStatus = map[api.ExecutionState]string{
	api.ExecutionSucceeded:   StatusSuccess,
	api.ExecutionFaulted:     StatusError,
	api.ExecutionTimedOut:    StatusTimeout,
	api.ExecutionUnsupported: StatusUnsupported,
}

// NewExecuteResponse converts a verdict to its wire form.
func NewExecuteResponse(v api.ExecutionVerdict) *ExecuteResponse {
	status, ok := stateToStatus[v.State]
	if !ok {
		status = StatusError
	}
	return &ExecuteResponse{
		Status:          status,
		Stdout:          v.Stdout,
		Stderr:          v.Stderr,
		ExitCode:        v.ExitCode,
		ExecutionTimeMs: v.Duration.Milliseconds(),
		FailureReason:   v.FailureReason,
	}
}

// Verdict converts the wire form back to a verdict.
func (r *ExecuteResponse) Verdict() api.ExecutionVerdict {
	v := api.ExecutionVerdict{
		Success:       r.Status == StatusSuccess,
		Stdout:        r.Stdout,
		Stderr:        r.Stderr,
		FailureReason: r.FailureReason,
		ExitCode:      r.ExitCode,
	}
	switch r.Status {
	case StatusSuccess:
		v.State = api.ExecutionSucceeded
		v.FailureReason = ""
	case StatusTimeout:
		v.State = api.ExecutionTimedOut
		if v.FailureReason == "" {
			v.FailureReason = api.ReasonTimeout
		}
	case StatusUnsupported:
		v.State = api.ExecutionUnsupported
		if v.FailureReason == "" {
			v.FailureReason = api.ReasonUnsupportedLanguage
		}
	default:
		v.State = api.ExecutionFaulted
		if v.FailureReason == "" {
			v.FailureReason = "exit status " + strconv.Itoa(r.ExitCode)
		}
	}
	return v
}
