// Package mcpserver exposes the code pipeline as Model Context Protocol
// tools over streamable HTTP.
//
// Tools:
//   - generate_code: generate, persist and execute code for a task
//   - verify_code: execute caller-supplied code
package mcpserver

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/codesmith/pkg/api"
	"github.com/rhuss/codesmith/pkg/debug"
	"github.com/rhuss/codesmith/pkg/transport"
)

// DefaultPath is where the MCP endpoint is mounted by default.
const DefaultPath = "/mcp"

// GenerateInput is the argument schema of generate_code.
type GenerateInput struct {
	Task    string `json:"task" jsonschema:"free-text description of the code to generate"`
	Backend string `json:"backend,omitempty" jsonschema:"generation backend: openai, claude, gemini, grok or stub"`
	Model   string `json:"model,omitempty" jsonschema:"model override for the backend"`
}

// VerifyInput is the argument schema of verify_code.
type VerifyInput struct {
	Code     string `json:"code" jsonschema:"source code to execute"`
	Language string `json:"language,omitempty" jsonschema:"language name; verify.default_language (Python) when empty"`
}

// VerifyOutput is the structured result of verify_code.
type VerifyOutput struct {
	ID       string `json:"id"`
	Language string `json:"language"`
	Success  bool   `json:"success"`
	Output   string `json:"output"`
	Error    string `json:"error"`
}

// Server wraps an MCP server bound to a CodeHandler.
type Server struct {
	mcp  *mcp.Server
	code transport.CodeHandler
}

// New creates an MCP server exposing the pipeline tools.
func New(code transport.CodeHandler, version string) *Server {
	s := &Server{
		mcp: mcp.NewServer(
			&mcp.Implementation{Name: "codesmith", Version: version},
			nil,
		),
		code: code,
	}

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "generate_code",
		Description: "Generate code for a task with an LLM backend, save it, run it in a sandbox and report the result.",
	}, s.generate)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "verify_code",
		Description: "Run source code in a sandbox and report stdout, success and error text.",
	}, s.verify)

	return s
}

// MCP returns the underlying server, for in-process transports.
func (s *Server) MCP() *mcp.Server { return s.mcp }

// ServeStdio serves the tools over stdin and stdout until ctx is done or
// the client disconnects.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// Handler serves the tools over streamable HTTP.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcp
	}, nil)
}

func (s *Server) generate(ctx context.Context, _ *mcp.CallToolRequest, in GenerateInput) (*mcp.CallToolResult, api.GenerateResponse, error) {
	debug.Log("mcp", "generate_code", "backend", in.Backend, "task_len", len(in.Task))

	resp, err := s.code.CreateGeneration(ctx, &api.GenerateRequest{
		Task:    in.Task,
		Backend: in.Backend,
		Model:   in.Model,
	})
	if err != nil {
		return nil, api.GenerateResponse{}, err
	}
	return nil, *resp, nil
}

func (s *Server) verify(ctx context.Context, _ *mcp.CallToolRequest, in VerifyInput) (*mcp.CallToolResult, VerifyOutput, error) {
	debug.Log("mcp", "verify_code", "language", in.Language, "code_len", len(in.Code))

	resp, err := s.code.CreateVerification(ctx, &api.VerifyRequest{Code: in.Code, Language: in.Language})
	if err != nil {
		return nil, VerifyOutput{}, err
	}
	return nil, VerifyOutput{
		ID:       resp.ID,
		Language: resp.Language,
		Success:  resp.Success,
		Output:   resp.Output,
		Error:    resp.Error,
	}, nil
}
