// Package config provides unified configuration for codesmith.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. .env file in the working directory
//  4. Environment variable overrides (CODESMITH_ prefix and legacy key names)
//  5. File reference resolution (_file suffix fields)
//  6. Validation
package config

import "time"

// Config holds all configuration for codesmith.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Backends      BackendsConfig      `yaml:"backends"`
	Summarize     SummarizeConfig     `yaml:"summarize"`
	Artifact      ArtifactConfig      `yaml:"artifact"`
	Sandbox       SandboxConfig       `yaml:"sandbox"`
	Verify        VerifyConfig        `yaml:"verify"`
	History       HistoryConfig       `yaml:"history"`
	Auth          AuthConfig          `yaml:"auth"`
	MCP           MCPConfig           `yaml:"mcp"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`           // default: 8080
	ReadTimeout  time.Duration `yaml:"read_timeout"`   // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`  // default: 300s
	MaxBodyBytes int64         `yaml:"max_body_bytes"` // default: 10 MiB
}

// BackendsConfig selects and configures the generation backends.
type BackendsConfig struct {
	Default string        `yaml:"default"` // default: "openai"
	OpenAI  BackendConfig `yaml:"openai"`
	Claude  BackendConfig `yaml:"claude"`
	Gemini  BackendConfig `yaml:"gemini"`
	Grok    BackendConfig `yaml:"grok"`
	Stub    BackendConfig `yaml:"stub"`
}

// BackendConfig holds the settings of one backend.
type BackendConfig struct {
	APIKey     string        `yaml:"api_key"`
	APIKeyFile string        `yaml:"api_key_file"` // _file variant for api_key
	Model      string        `yaml:"model"`        // empty: backend default
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"` // default: 120s

	// Content is the fixed reply of the stub backend.
	Content string `yaml:"content"`
}

// SummarizeConfig holds transcript summarization settings.
type SummarizeConfig struct {
	Backend string `yaml:"backend"` // empty: backends.default
}

// ArtifactConfig selects where generated code is persisted.
type ArtifactConfig struct {
	Type string   `yaml:"type"` // "fs" or "s3", default: "fs"
	Dir  string   `yaml:"dir"`  // default: "generated_code"
	S3   S3Config `yaml:"s3"`
}

// S3Config holds S3-compatible object storage settings.
type S3Config struct {
	Endpoint      string `yaml:"endpoint"`
	Region        string `yaml:"region"`
	Bucket        string `yaml:"bucket"`
	Prefix        string `yaml:"prefix"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	SecretKeyFile string `yaml:"secret_key_file"` // _file variant for secret_key
	UseSSL        bool   `yaml:"use_ssl"`
}

// SandboxConfig holds execution sandbox settings.
type SandboxConfig struct {
	Mode           string        `yaml:"mode"`             // "local" or "remote", default: "local"
	Timeout        time.Duration `yaml:"timeout"`          // default: 10s
	MaxConcurrent  int           `yaml:"max_concurrent"`   // default: 4
	MaxOutputBytes int           `yaml:"max_output_bytes"` // default: 1 MiB
	TempDir        string        `yaml:"temp_dir"`
	CacheDir       string        `yaml:"cache_dir"` // default: user cache dir
	Limits         LimitsConfig  `yaml:"limits"`
	Remote         RemoteConfig  `yaml:"remote"`
}

// VerifyConfig holds verify-only settings.
type VerifyConfig struct {
	// DefaultLanguage is used when a verify request names no language.
	// "auto" classifies the code instead. Default: "python".
	DefaultLanguage string `yaml:"default_language"`
}

// LimitsConfig holds per-process resource limits. Zero means the sandbox
// default.
type LimitsConfig struct {
	CPUSeconds    uint64 `yaml:"cpu_seconds"`
	MemoryBytes   uint64 `yaml:"memory_bytes"`
	OpenFiles     uint64 `yaml:"open_files"`
	FileSizeBytes uint64 `yaml:"file_size_bytes"`
}

// RemoteConfig locates remote sandbox servers. Exactly one of URL or
// Kubernetes.Template must be set when sandbox.mode is "remote".
type RemoteConfig struct {
	URL        string           `yaml:"url"`
	Kubernetes KubernetesConfig `yaml:"kubernetes"`
}

// KubernetesConfig configures SandboxClaim-based sandbox acquisition.
type KubernetesConfig struct {
	Template  string        `yaml:"template"`
	Namespace string        `yaml:"namespace"`     // default: "default"
	Timeout   time.Duration `yaml:"claim_timeout"` // default: 30s
}

// HistoryConfig holds verification history settings.
type HistoryConfig struct {
	Type     string         `yaml:"type"`     // "none", "memory" or "postgres", default: "memory"
	MaxSize  int            `yaml:"max_size"` // for memory history, default: 1000
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 10
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// AuthConfig holds authentication and rate limit settings.
type AuthConfig struct {
	Type      string          `yaml:"type"`     // "none", "apikey" or "jwt", default: "none"
	APIKeys   []APIKeyConfig  `yaml:"api_keys"` // API key entries for type=apikey
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key         string `yaml:"key" json:"key"`
	KeyFile     string `yaml:"key_file" json:"key_file"` // _file variant for key
	Subject     string `yaml:"subject" json:"subject"`
	TenantID    string `yaml:"tenant_id" json:"tenant_id"`
	ServiceTier string `yaml:"service_tier" json:"service_tier"`
}

// JWTConfig holds JWT bearer token settings for type=jwt.
type JWTConfig struct {
	Issuer      string        `yaml:"issuer"`
	Audience    string        `yaml:"audience"`
	JWKSURL     string        `yaml:"jwks_url"`
	UserClaim   string        `yaml:"user_claim"`
	TenantClaim string        `yaml:"tenant_claim"`
	ScopesClaim string        `yaml:"scopes_claim"`
	TierClaim   string        `yaml:"tier_claim"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
}

// RateLimitConfig holds per-tier request rate limits. Zero disables
// limiting.
type RateLimitConfig struct {
	DefaultRPM int            `yaml:"default_rpm"`
	Tiers      map[string]int `yaml:"tiers"` // service tier -> requests per minute
}

// MCPConfig holds the MCP tool endpoint settings.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/mcp"
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// LoggingConfig holds log output settings. CODESMITH_LOG_LEVEL and
// CODESMITH_DEBUG override level and debug at runtime.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // default: "INFO"
	Format string `yaml:"format"` // "text" or "json", default: "text"
	Debug  string `yaml:"debug"`  // comma-separated debug categories
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 300 * time.Second,
			MaxBodyBytes: 10 << 20,
		},
		Backends: BackendsConfig{
			Default: "openai",
		},
		Artifact: ArtifactConfig{
			Type: "fs",
			Dir:  "generated_code",
		},
		Sandbox: SandboxConfig{
			Mode:           "local",
			Timeout:        10 * time.Second,
			MaxConcurrent:  4,
			MaxOutputBytes: 1 << 20,
			Remote: RemoteConfig{
				Kubernetes: KubernetesConfig{
					Namespace: "default",
					Timeout:   30 * time.Second,
				},
			},
		},
		Verify: VerifyConfig{
			DefaultLanguage: "python",
		},
		History: HistoryConfig{
			Type:    "memory",
			MaxSize: 1000,
			Postgres: PostgresConfig{
				MaxConns: 10,
			},
		},
		Auth: AuthConfig{
			Type: "none",
		},
		MCP: MCPConfig{
			Enabled: true,
			Path:    "/mcp",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}

// Backend returns the settings block for a backend name, or nil if the
// name is not a known backend.
func (b *BackendsConfig) Backend(name string) *BackendConfig {
	switch name {
	case "openai":
		return &b.OpenAI
	case "claude":
		return &b.Claude
	case "gemini":
		return &b.Gemini
	case "grok":
		return &b.Grok
	case "stub":
		return &b.Stub
	default:
		return nil
	}
}
