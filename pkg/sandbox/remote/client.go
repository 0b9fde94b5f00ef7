package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rhuss/codesmith/pkg/api"
	"github.com/rhuss/codesmith/pkg/debug"
	"github.com/rhuss/codesmith/pkg/observability"
	"github.com/rhuss/codesmith/pkg/sandbox"
)

// responseSlack is added to the execution budget to form the deadline of
// the HTTP exchange, covering transfer and server-side teardown.
const responseSlack = 5 * time.Second

// ErrAtCapacity is returned when the sandbox server rejects a run with 429.
var ErrAtCapacity = errors.New("sandbox at capacity")

// Client calls the sandbox server's REST API.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a sandbox HTTP client. The overall HTTP timeout is a
// backstop; the execution timeout is enforced by the server.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// Execute sends a code execution request to the sandbox server.
func (c *Client) Execute(ctx context.Context, sandboxURL string, req *ExecuteRequest) (*ExecuteResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, sandboxURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sandbox request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrAtCapacity
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sandbox returned HTTP %d: %s", resp.StatusCode, debug.Truncate(string(respBody), 200))
	}

	var out ExecuteResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

// Executor implements sandbox.Executor against a remote sandbox server.
type Executor struct {
	acquirer Acquirer
	client   *Client
	timeout  time.Duration
	slack    time.Duration
}

var _ sandbox.Executor = (*Executor)(nil)

// NewExecutor creates a remote executor. timeout is the per-run execution
// budget forwarded to the server.
func NewExecutor(acquirer Acquirer, client *Client, timeout time.Duration) *Executor {
	if client == nil {
		client = NewClient(0)
	}
	return &Executor{acquirer: acquirer, client: client, timeout: timeout, slack: responseSlack}
}

// Execute runs code remotely. Transport and acquisition failures become a
// faulted verdict with a "sandbox unavailable" reason.
func (e *Executor) Execute(ctx context.Context, code string, lang api.Language) api.ExecutionVerdict {
	start := time.Now()
	v := e.execute(ctx, code, lang)
	v.Duration = time.Since(start)
	observability.RecordExecution(lang.String(), string(v.State), v.Duration)
	return v
}

func (e *Executor) execute(ctx context.Context, code string, lang api.Language) api.ExecutionVerdict {
	url, release, err := e.acquirer.Acquire(ctx)
	if err != nil {
		return e.unavailable(ctx, err)
	}
	defer release()

	debug.Log("sandbox", "remote execute", "url", url, "language", lang, "timeout", e.timeout)

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout+e.slack)
		defer cancel()
	}
	resp, err := e.client.Execute(ctx, url, NewExecuteRequest(code, lang, e.timeout))
	if err != nil {
		return e.unavailable(ctx, err)
	}
	return resp.Verdict()
}

func (e *Executor) unavailable(ctx context.Context, err error) api.ExecutionVerdict {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return api.ExecutionVerdict{FailureReason: api.ReasonCancelled, ExitCode: -1, State: api.ExecutionFaulted}
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return api.ExecutionVerdict{FailureReason: api.ReasonTimeout, ExitCode: -1, State: api.ExecutionTimedOut}
	}
	return api.ExecutionVerdict{
		FailureReason: "sandbox unavailable: " + err.Error(),
		ExitCode:      -1,
		State:         api.ExecutionFaulted,
	}
}
