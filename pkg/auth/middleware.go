package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/rhuss/codesmith/pkg/api"
	"github.com/rhuss/codesmith/pkg/observability"
)

// DefaultBypassEndpoints lists endpoints served without authentication.
var DefaultBypassEndpoints = []string{"/healthz", "/readyz", "/metrics"}

// RetryAfter is advertised to rate-limited callers.
const RetryAfter = time.Minute

// Middleware authenticates every request outside bypass with chain,
// applies limiter (optional) to the resulting identity, and hands the
// identity and its tenant scope to the wrapped handler.
func Middleware(chain Authenticator, limiter RateLimiter, bypass []string) func(http.Handler) http.Handler {
	skip := slices.Clone(bypass)
	retryAfter := strconv.Itoa(int(RetryAfter / time.Second))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slices.Contains(skip, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			res := chain.Authenticate(r.Context(), r)
			switch {
			case errors.Is(res.Err, ErrNoSubject):
				slog.Error("authentication misconfigured", "path", r.URL.Path, "error", res.Err)
				writeError(w, http.StatusInternalServerError, api.NewServerError("internal authentication error"))
				return
			case res.Decision != Yes || res.Identity == nil:
				slog.Warn("authentication failed", "path", r.URL.Path, "remote_addr", r.RemoteAddr, "error", res.Err)
				w.Header().Set("WWW-Authenticate", `Bearer realm="codesmith"`)
				writeError(w, http.StatusUnauthorized, api.NewInvalidRequestError("", "authentication required"))
				return
			}

			id := res.Identity
			if limiter != nil {
				if err := limiter.Allow(r.Context(), id); err != nil {
					slog.Warn("rate limit exceeded", "subject", id.Subject, "tier", id.RateTier())
					observability.RateLimitRejectedTotal.WithLabelValues(id.RateTier()).Inc()
					w.Header().Set("Retry-After", retryAfter)
					writeError(w, http.StatusTooManyRequests, api.NewTooManyRequestsError("rate limit exceeded"))
					return
				}
			}

			slog.Debug("request authenticated", "subject", id.Subject, "tenant", id.Tenant, "path", r.URL.Path)
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func writeError(w http.ResponseWriter, status int, err *api.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: err})
}
