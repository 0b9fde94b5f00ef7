package apikey

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhuss/codesmith/pkg/auth"
)

var keys = []RawKeyEntry{
	{Key: "sk-ci", Identity: auth.Identity{Subject: "ci", Tier: "gold", Tenant: "acme"}},
	{Key: "sk-dev", Identity: auth.Identity{Subject: "dev"}},
}

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name        string
		bearer      string
		header      string
		noHeader    bool
		want        auth.Decision
		wantSubject string
		wantTenant  string
		wantTier    string
	}{
		{name: "bearer key", bearer: "Bearer sk-ci", noHeader: true, want: auth.Yes, wantSubject: "ci", wantTenant: "acme", wantTier: "gold"},
		{name: "lowercase scheme", bearer: "bearer sk-dev", noHeader: true, want: auth.Yes, wantSubject: "dev", wantTier: ""},
		{name: "x-api-key header", header: "sk-dev", want: auth.Yes, wantSubject: "dev"},
		{name: "padded header", header: "  sk-ci ", want: auth.Yes, wantSubject: "ci", wantTenant: "acme", wantTier: "gold"},
		{name: "unknown bearer", bearer: "Bearer sk-nope", noHeader: true, want: auth.No},
		{name: "unknown header", header: "sk-nope", want: auth.No},
		{name: "empty bearer", bearer: "Bearer ", noHeader: true, want: auth.No},
		{name: "empty header", header: "", want: auth.No},
		{name: "bearer wins over header", bearer: "Bearer sk-nope", header: "sk-ci", want: auth.No},
		{name: "other scheme abstains", bearer: "Basic Y2k6c2VjcmV0", noHeader: true, want: auth.Abstain},
		{name: "no credentials abstain", noHeader: true, want: auth.Abstain},
	}

	a := New(keys)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/v1/generate", nil)
			if tt.bearer != "" {
				r.Header.Set("Authorization", tt.bearer)
			}
			if !tt.noHeader {
				r.Header.Set(HeaderName, tt.header)
			}

			res := a.Authenticate(context.Background(), r)
			require.Equal(t, tt.want, res.Decision, "decision %s", res.Decision)

			switch tt.want {
			case auth.Yes:
				require.NotNil(t, res.Identity)
				assert.Equal(t, tt.wantSubject, res.Identity.Subject)
				assert.Equal(t, tt.wantTenant, res.Identity.Tenant)
				assert.Equal(t, tt.wantTier, res.Identity.Tier)
			case auth.No:
				assert.ErrorIs(t, res.Err, auth.ErrUnauthenticated)
				assert.Nil(t, res.Identity)
			}
		})
	}
}

func TestAuthenticateReturnsCopies(t *testing.T) {
	a := New(keys)
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer sk-ci")

	first := a.Authenticate(context.Background(), r).Identity
	first.Tenant = "globex"

	second := a.Authenticate(context.Background(), r).Identity
	assert.Equal(t, "acme", second.Tenant, "a caller mutating its identity must not affect later requests")
}

func TestNewDoesNotKeepPlaintext(t *testing.T) {
	a := New(keys)
	require.Len(t, a.keys, len(keys))
	for _, k := range a.keys {
		assert.NotContains(t, string(k.digest[:]), "sk-")
	}
}

func TestChainWithAPIKeys(t *testing.T) {
	chain := auth.NewChain(auth.No, New(keys))

	r := httptest.NewRequest("GET", "/", nil)
	res := chain.Authenticate(context.Background(), r)
	assert.Equal(t, auth.No, res.Decision, "requests without a key are refused in apikey mode")

	r.Header.Set(HeaderName, "sk-dev")
	res = chain.Authenticate(context.Background(), r)
	require.Equal(t, auth.Yes, res.Decision)
	assert.Equal(t, auth.DefaultTier, res.Identity.RateTier())
}
