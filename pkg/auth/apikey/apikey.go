// Package apikey authenticates requests against a static set of API keys.
// Keys are accepted as a bearer token or in the X-API-Key header and are
// compared by SHA-256 digest in constant time.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rhuss/codesmith/pkg/auth"
)

// HeaderName is the alternative header carrying a raw API key.
const HeaderName = "X-API-Key"

type keyEntry struct {
	digest   [32]byte
	identity auth.Identity
}

// Authenticator validates API keys against a static key store.
type Authenticator struct {
	keys []keyEntry
}

var _ auth.Authenticator = (*Authenticator)(nil)

// RawKeyEntry is the configuration format for API keys.
type RawKeyEntry struct {
	Key      string
	Identity auth.Identity
}

// New creates an API key authenticator. Keys are hashed immediately;
// plaintext keys are not retained.
func New(entries []RawKeyEntry) *Authenticator {
	a := &Authenticator{keys: make([]keyEntry, 0, len(entries))}
	for _, e := range entries {
		a.keys = append(a.keys, keyEntry{
			digest:   sha256.Sum256([]byte(e.Key)),
			identity: e.Identity,
		})
	}
	return a
}

// Authenticate returns Yes for a known key, No when a key is presented but
// unknown or empty, and Abstain when the request carries no key at all.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	token, ok := auth.BearerToken(r)
	if !ok {
		if v, present := r.Header[http.CanonicalHeaderKey(HeaderName)]; present && len(v) > 0 {
			token, ok = strings.TrimSpace(v[0]), true
		}
	}
	if !ok {
		return auth.Pass()
	}
	if token == "" {
		return auth.Reject(auth.ErrUnauthenticated)
	}

	digest := sha256.Sum256([]byte(token))
	var match *keyEntry
	for i := range a.keys {
		// Compare every entry so timing does not reveal the key's position.
		if subtle.ConstantTimeCompare(digest[:], a.keys[i].digest[:]) == 1 {
			match = &a.keys[i]
		}
	}
	if match == nil {
		return auth.Reject(auth.ErrUnauthenticated)
	}

	id := match.identity
	return auth.Accept(&id)
}
