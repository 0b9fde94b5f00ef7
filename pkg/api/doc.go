// Package api defines the core data types shared by every codesmith component.
//
// The package performs no I/O. It holds the generation and verification
// values that flow through the pipeline, the request and response shapes
// used at the transport boundary, the error taxonomy, and ID helpers.
//
// Core types:
//   - [Language]: canonical programming language tag (Unknown is valid)
//   - [GenerationTask]: a task description plus optional backend and model
//   - [GeneratedArtifact]: code produced by one successful generation call
//   - [StoredArtifactRef]: an artifact plus its storage locator
//   - [ExecutionVerdict]: the terminal outcome of one sandbox run
//   - [Error]: structured error with kind, backend, and message
package api
