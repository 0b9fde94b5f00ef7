// Package http adapts the transport handler contracts to net/http.
//
// Routes:
//
//	POST /v1/generate             generate, persist and execute code (alias /generate-code)
//	POST /v1/verify               execute caller-supplied code (alias /test-code)
//	POST /v1/summarize            summarize a transcript (alias /summarize)
//	GET  /v1/verifications        list recorded runs, newest first
//	GET  /v1/verifications/{id}   fetch one recorded run
//	GET  /v1/artifacts?path=      read persisted code
//	GET  /healthz, /readyz        liveness and readiness probes
package http
