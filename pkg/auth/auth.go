package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Decision is one authenticator's vote on a request.
type Decision int

const (
	// Abstain means the authenticator does not recognize the credentials;
	// the next authenticator is asked.
	Abstain Decision = iota

	// Yes accepts the request; Result.Identity names the caller.
	Yes

	// No rejects the request; Result.Err says why.
	No
)

func (d Decision) String() string {
	switch d {
	case Abstain:
		return "abstain"
	case Yes:
		return "yes"
	case No:
		return "no"
	}
	return "unknown"
}

// Result is the outcome of authenticating one request.
type Result struct {
	Decision Decision
	Identity *Identity
	Err      error
}

// Accept returns a Yes vote for id.
func Accept(id *Identity) Result { return Result{Decision: Yes, Identity: id} }

// Reject returns a No vote. A nil err is reported as ErrUnauthenticated.
func Reject(err error) Result {
	if err == nil {
		err = ErrUnauthenticated
	}
	return Result{Decision: No, Err: err}
}

// Pass returns an Abstain vote.
func Pass() Result { return Result{Decision: Abstain} }

// Authenticator votes on the credentials of a request.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) Result
}

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrTooManyRequests = errors.New("rate limit exceeded")

	// ErrNoSubject marks an authenticator that accepted a request without
	// naming the caller. It is a server fault, not a client one.
	ErrNoSubject = errors.New("authenticator accepted a caller without a subject")
)

// Chain asks authenticators in order. The first Yes or No decides; when all
// abstain the fallback decides, and a Yes fallback admits the caller as
// Anonymous.
type Chain struct {
	authenticators []Authenticator
	fallback       Decision
}

// NewChain creates a Chain. fallback must be Yes or No.
func NewChain(fallback Decision, authenticators ...Authenticator) *Chain {
	return &Chain{authenticators: authenticators, fallback: fallback}
}

// Authenticate implements Authenticator.
func (c *Chain) Authenticate(ctx context.Context, r *http.Request) Result {
	for _, a := range c.authenticators {
		res := a.Authenticate(ctx, r)
		switch res.Decision {
		case Abstain:
			continue
		case Yes:
			if res.Identity == nil || res.Identity.Subject == "" {
				return Reject(ErrNoSubject)
			}
		}
		return res
	}
	if c.fallback == Yes {
		return Accept(Anonymous())
	}
	return Reject(nil)
}

// BearerToken returns the credential of an "Authorization: Bearer" header.
// ok is false when the header is missing or names another scheme; ok with
// an empty token means the scheme was sent without a credential.
func BearerToken(r *http.Request) (token string, ok bool) {
	h := r.Header.Get("Authorization")
	scheme, rest, _ := strings.Cut(h, " ")
	if !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, r *http.Request) Result

// Authenticate calls f.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, r *http.Request) Result {
	return f(ctx, r)
}
