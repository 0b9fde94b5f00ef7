// Package auth authenticates requests to the codesmith HTTP surface and
// rate limits them per caller.
//
// A Chain asks its Authenticators in turn. Each votes Yes (caller
// identified), No (credentials invalid) or Abstain (credentials not
// recognized); the first non-abstaining vote decides, and a fallback
// decides when all abstain. Middleware puts the resulting Identity into
// the request context, where its tenant also scopes verification history.
package auth
