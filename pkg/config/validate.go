package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rhuss/codesmith/pkg/api"
)

var knownBackends = []string{"openai", "claude", "gemini", "grok", "stub"}

// Validate checks the configuration for required fields and valid values.
// All problems are reported together, each with its field path.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	if c.Backends.Backend(strings.ToLower(c.Backends.Default)) == nil {
		errs = append(errs, fmt.Errorf("backends.default must be one of %s, got %q",
			strings.Join(knownBackends, ", "), c.Backends.Default))
	}
	if s := c.Summarize.Backend; s != "" && c.Backends.Backend(strings.ToLower(s)) == nil {
		errs = append(errs, fmt.Errorf("summarize.backend must be one of %s, got %q",
			strings.Join(knownBackends, ", "), s))
	}

	switch c.Artifact.Type {
	case "fs":
		if c.Artifact.Dir == "" {
			errs = append(errs, errors.New("artifact.dir is required when artifact.type is \"fs\""))
		}
	case "s3":
		if c.Artifact.S3.Endpoint == "" {
			errs = append(errs, errors.New("artifact.s3.endpoint is required when artifact.type is \"s3\""))
		}
		if c.Artifact.S3.Bucket == "" {
			errs = append(errs, errors.New("artifact.s3.bucket is required when artifact.type is \"s3\""))
		}
	default:
		errs = append(errs, fmt.Errorf("artifact.type must be \"fs\" or \"s3\", got %q", c.Artifact.Type))
	}

	if c.Sandbox.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("sandbox.timeout must be > 0, got %s", c.Sandbox.Timeout))
	}
	if c.Sandbox.MaxConcurrent <= 0 {
		errs = append(errs, fmt.Errorf("sandbox.max_concurrent must be > 0, got %d", c.Sandbox.MaxConcurrent))
	}
	if c.Sandbox.MaxOutputBytes < 0 {
		errs = append(errs, fmt.Errorf("sandbox.max_output_bytes must be >= 0, got %d", c.Sandbox.MaxOutputBytes))
	}
	switch c.Sandbox.Mode {
	case "local":
	case "remote":
		hasURL := c.Sandbox.Remote.URL != ""
		hasTemplate := c.Sandbox.Remote.Kubernetes.Template != ""
		if hasURL == hasTemplate {
			errs = append(errs, errors.New("exactly one of sandbox.remote.url or sandbox.remote.kubernetes.template is required when sandbox.mode is \"remote\""))
		}
	default:
		errs = append(errs, fmt.Errorf("sandbox.mode must be \"local\" or \"remote\", got %q", c.Sandbox.Mode))
	}

	if l := c.Verify.DefaultLanguage; l != "" && l != "auto" && api.ParseLanguage(l) == api.LanguageUnknown {
		errs = append(errs, fmt.Errorf("verify.default_language must be \"auto\" or a language name, got %q", l))
	}

	switch c.History.Type {
	case "none", "memory":
	case "postgres":
		if c.History.Postgres.DSN == "" && c.History.Postgres.DSNFile == "" {
			errs = append(errs, errors.New("history.postgres.dsn or history.postgres.dsn_file is required when history.type is \"postgres\""))
		}
	default:
		errs = append(errs, fmt.Errorf("history.type must be \"none\", \"memory\" or \"postgres\", got %q", c.History.Type))
	}

	switch c.Auth.Type {
	case "none":
	case "apikey":
		if len(c.Auth.APIKeys) == 0 {
			errs = append(errs, errors.New("auth.api_keys must not be empty when auth.type is \"apikey\""))
		}
		for i, k := range c.Auth.APIKeys {
			if k.Key == "" && k.KeyFile == "" {
				errs = append(errs, fmt.Errorf("auth.api_keys[%d].key or key_file is required", i))
			}
		}
	case "jwt":
		if c.Auth.JWT.JWKSURL == "" {
			errs = append(errs, errors.New("auth.jwt.jwks_url is required when auth.type is \"jwt\""))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"apikey\", or \"jwt\", got %q", c.Auth.Type))
	}

	if c.MCP.Enabled && !strings.HasPrefix(c.MCP.Path, "/") {
		errs = append(errs, fmt.Errorf("mcp.path must start with \"/\", got %q", c.MCP.Path))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
