// Package app assembles the codesmith pipeline and its dependencies from
// configuration. It is shared by the server and CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rhuss/codesmith/pkg/api"
	"github.com/rhuss/codesmith/pkg/artifact"
	"github.com/rhuss/codesmith/pkg/auth"
	"github.com/rhuss/codesmith/pkg/auth/apikey"
	"github.com/rhuss/codesmith/pkg/auth/jwt"
	"github.com/rhuss/codesmith/pkg/auth/noop"
	"github.com/rhuss/codesmith/pkg/config"
	"github.com/rhuss/codesmith/pkg/history"
	"github.com/rhuss/codesmith/pkg/history/memory"
	"github.com/rhuss/codesmith/pkg/history/postgres"
	"github.com/rhuss/codesmith/pkg/pipeline"
	"github.com/rhuss/codesmith/pkg/provider"
	"github.com/rhuss/codesmith/pkg/provider/backends"
	"github.com/rhuss/codesmith/pkg/sandbox"
	"github.com/rhuss/codesmith/pkg/sandbox/kubernetes"
	"github.com/rhuss/codesmith/pkg/sandbox/remote"
	"github.com/rhuss/codesmith/pkg/summarize"
)

// App holds the assembled components.
type App struct {
	Registry   *provider.Registry
	Artifacts  artifact.Store
	Executor   sandbox.Executor
	History    history.Store // nil when history is disabled
	Pipeline   *pipeline.Pipeline
	Summarizer *summarize.Summarizer
}

// New builds an App from cfg. The caller must Close it.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Registry: backends.NewRegistry(BackendSettings(&cfg.Backends))}

	store, err := NewArtifactStore(&cfg.Artifact)
	if err != nil {
		return nil, fmt.Errorf("artifact store: %w", err)
	}
	a.Artifacts = store

	exec, err := NewExecutor(&cfg.Sandbox)
	if err != nil {
		return nil, fmt.Errorf("sandbox: %w", err)
	}
	a.Executor = exec

	hist, err := NewHistory(ctx, &cfg.History)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	a.History = hist

	opts := []pipeline.Option{
		pipeline.WithDefaultBackend(cfg.Backends.Default),
		pipeline.WithDefaultVerifyLanguage(VerifyLanguage(&cfg.Verify)),
	}
	if hist != nil {
		opts = append(opts, pipeline.WithHistory(hist))
	}
	a.Pipeline = pipeline.New(a.Registry, store, exec, opts...)

	summaryBackend := cfg.Summarize.Backend
	if summaryBackend == "" {
		summaryBackend = cfg.Backends.Default
	}
	a.Summarizer = summarize.New(a.Registry, summaryBackend)

	slog.Info("pipeline ready",
		"default_backend", cfg.Backends.Default,
		"artifact", artifact.Kind(store),
		"sandbox", cfg.Sandbox.Mode,
		"history", cfg.History.Type,
	)
	return a, nil
}

// Warm prepares toolchain caches of a local sandbox. It is a no-op for
// remote executors.
func (a *App) Warm(ctx context.Context) error {
	w, ok := a.Executor.(interface{ Warm(context.Context) error })
	if !ok {
		return nil
	}
	return w.Warm(ctx)
}

// VerifyLanguage resolves verify.default_language. "auto" selects
// classification, which the pipeline expresses as an empty language.
func VerifyLanguage(cfg *config.VerifyConfig) api.Language {
	switch cfg.DefaultLanguage {
	case "auto":
		return ""
	case "":
		return api.LanguagePython
	default:
		return api.ParseLanguage(cfg.DefaultLanguage)
	}
}

// Close releases the history store.
func (a *App) Close() error {
	if a.History == nil {
		return nil
	}
	return a.History.Close()
}

// BackendSettings converts the backends section to registry settings.
func BackendSettings(cfg *config.BackendsConfig) map[provider.Backend]provider.Settings {
	out := make(map[provider.Backend]provider.Settings)
	for _, b := range provider.Backends {
		bc := cfg.Backend(string(b))
		if bc == nil {
			continue
		}
		out[b] = provider.Settings{
			APIKey:  bc.APIKey,
			Model:   bc.Model,
			BaseURL: bc.BaseURL,
			Timeout: bc.Timeout,
			Content: bc.Content,
		}
	}
	return out
}

// NewArtifactStore creates the configured artifact store.
func NewArtifactStore(cfg *config.ArtifactConfig) (artifact.Store, error) {
	switch cfg.Type {
	case "", "fs":
		return artifact.NewFileStore(cfg.Dir), nil
	case "s3":
		return artifact.NewS3Store(artifact.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			UseSSL:    cfg.S3.UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown artifact type %q", cfg.Type)
	}
}

// NewExecutor creates the configured sandbox executor.
func NewExecutor(cfg *config.SandboxConfig) (sandbox.Executor, error) {
	switch cfg.Mode {
	case "", "local":
		return sandbox.NewLocal(sandbox.Config{
			Timeout:        cfg.Timeout,
			MaxConcurrent:  cfg.MaxConcurrent,
			MaxOutputBytes: cfg.MaxOutputBytes,
			TempDir:        cfg.TempDir,
			CacheDir:       cfg.CacheDir,
			Limits: sandbox.Limits{
				CPUSeconds:    cfg.Limits.CPUSeconds,
				MemoryBytes:   cfg.Limits.MemoryBytes,
				OpenFiles:     cfg.Limits.OpenFiles,
				FileSizeBytes: cfg.Limits.FileSizeBytes,
			},
		}), nil
	case "remote":
		var acq remote.Acquirer
		if cfg.Remote.URL != "" {
			acq = remote.StaticURL(strings.TrimRight(cfg.Remote.URL, "/"))
		} else {
			k := cfg.Remote.Kubernetes
			claims, err := kubernetes.NewFromEnvironment(k.Template, k.Namespace, k.Timeout)
			if err != nil {
				return nil, err
			}
			acq = claims
		}
		return remote.NewExecutor(acq, nil, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown sandbox mode %q", cfg.Mode)
	}
}

// NewHistory creates the configured history store, or nil for "none".
func NewHistory(ctx context.Context, cfg *config.HistoryConfig) (history.Store, error) {
	switch cfg.Type {
	case "none":
		return nil, nil
	case "", "memory":
		return memory.New(cfg.MaxSize)
	case "postgres":
		return postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
	default:
		return nil, fmt.Errorf("unknown history type %q", cfg.Type)
	}
}

// NewAuthChain creates the authenticator chain for the auth section.
func NewAuthChain(cfg *config.AuthConfig) (*auth.Chain, error) {
	switch cfg.Type {
	case "", "none":
		return auth.NewChain(auth.Yes, noop.Authenticator{}), nil
	case "apikey":
		entries := make([]apikey.RawKeyEntry, 0, len(cfg.APIKeys))
		for _, k := range cfg.APIKeys {
			if k.Key == "" {
				return nil, errors.New("api key entry without key")
			}
			subject := k.Subject
			if subject == "" {
				subject = "apikey"
			}
			entries = append(entries, apikey.RawKeyEntry{
				Key:      k.Key,
				Identity: auth.Identity{Subject: subject, Tier: k.ServiceTier, Tenant: k.TenantID},
			})
		}
		return auth.NewChain(auth.No, apikey.New(entries)), nil
	case "jwt":
		j := cfg.JWT
		return auth.NewChain(auth.No, jwt.New(jwt.Config{
			Issuer:      j.Issuer,
			Audience:    j.Audience,
			JWKSURL:     j.JWKSURL,
			UserClaim:   j.UserClaim,
			TenantClaim: j.TenantClaim,
			ScopesClaim: j.ScopesClaim,
			TierClaim:   j.TierClaim,
			CacheTTL:    j.CacheTTL,
		})), nil
	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}
}

// NewRateLimiter returns the per-tier limiter, or nil when no limit is
// configured.
func NewRateLimiter(cfg *config.RateLimitConfig) auth.RateLimiter {
	if cfg.DefaultRPM <= 0 && len(cfg.Tiers) == 0 {
		return nil
	}
	return auth.NewTokenBucketLimiter(cfg.Tiers, cfg.DefaultRPM)
}
