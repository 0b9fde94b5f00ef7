// Package noop provides the authenticator behind the "none" auth mode: it
// admits every request as the anonymous caller.
package noop

import (
	"context"
	"net/http"

	"github.com/rhuss/codesmith/pkg/auth"
)

// Authenticator accepts every request.
type Authenticator struct{}

var _ auth.Authenticator = Authenticator{}

// Authenticate returns Yes with auth.Anonymous.
func (Authenticator) Authenticate(context.Context, *http.Request) auth.Result {
	return auth.Accept(auth.Anonymous())
}
