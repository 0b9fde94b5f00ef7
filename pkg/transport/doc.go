// Package transport defines the handler contracts and HTTP middleware for
// the codesmith API surface.
//
// # Handler Interfaces
//
// CodeHandler covers the two pipeline operations: generate-and-verify and
// verify-only. Summarizer covers transcript summarization. Verification
// history is read through history.Store and persisted code through
// ArtifactReader. Each contract is optional at the adapter level except
// CodeHandler.
//
// # Errors
//
// Handlers return *api.Error values. HTTPStatusFromError maps each error
// kind to a status code and WriteError renders the JSON envelope
// {"error":{"type","message","backend","param"}}.
//
// # Middleware
//
// Middleware wraps http.Handler. Built-in middleware provides panic
// recovery, request ID assignment (X-Request-ID), and structured access
// logging via log/slog.
package transport
