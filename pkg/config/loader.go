package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, CODESMITH_CONFIG env, ./config.yaml, /etc/codesmith/config.yaml)
//  3. .env in the working directory (never overrides variables already set)
//  4. Environment variable overrides
//  5. File reference resolution (_file suffix)
//  6. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. CODESMITH_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/codesmith/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("CODESMITH_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/codesmith/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields. Malformed
// numeric and duration values are reported together.
func applyEnvOverrides(cfg *Config) error {
	var errs []error

	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := parseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	// Backend credentials under their conventional names.
	setString("OPENAI_API_KEY", &cfg.Backends.OpenAI.APIKey)
	setString("OPENAI_BASE_URL", &cfg.Backends.OpenAI.BaseURL)
	setString("ANTHROPIC_API_KEY", &cfg.Backends.Claude.APIKey)
	setString("CLAUDE_API_KEY", &cfg.Backends.Claude.APIKey)
	setString("GEMINI_API_KEY", &cfg.Backends.Gemini.APIKey)
	setString("GROK_API_KEY", &cfg.Backends.Grok.APIKey)

	setString("CODESMITH_BACKEND", &cfg.Backends.Default)
	setString("CODESMITH_SUMMARIZE_BACKEND", &cfg.Summarize.Backend)
	setInt("CODESMITH_PORT", &cfg.Server.Port)

	setString("CODESMITH_ARTIFACT_TYPE", &cfg.Artifact.Type)
	setString("CODESMITH_ARTIFACT_DIR", &cfg.Artifact.Dir)
	setString("CODESMITH_S3_ENDPOINT", &cfg.Artifact.S3.Endpoint)
	setString("CODESMITH_S3_BUCKET", &cfg.Artifact.S3.Bucket)
	setString("CODESMITH_S3_ACCESS_KEY", &cfg.Artifact.S3.AccessKey)
	setString("CODESMITH_S3_SECRET_KEY", &cfg.Artifact.S3.SecretKey)

	setString("CODESMITH_SANDBOX_MODE", &cfg.Sandbox.Mode)
	setDuration("CODESMITH_SANDBOX_TIMEOUT", &cfg.Sandbox.Timeout)
	setInt("CODESMITH_SANDBOX_MAX_CONCURRENT", &cfg.Sandbox.MaxConcurrent)
	setString("CODESMITH_SANDBOX_URL", &cfg.Sandbox.Remote.URL)
	setString("CODESMITH_SANDBOX_TEMPLATE", &cfg.Sandbox.Remote.Kubernetes.Template)
	setString("CODESMITH_SANDBOX_NAMESPACE", &cfg.Sandbox.Remote.Kubernetes.Namespace)
	setString("CODESMITH_SANDBOX_CACHE_DIR", &cfg.Sandbox.CacheDir)
	setString("CODESMITH_VERIFY_DEFAULT_LANGUAGE", &cfg.Verify.DefaultLanguage)

	setString("CODESMITH_HISTORY", &cfg.History.Type)
	setInt("CODESMITH_HISTORY_SIZE", &cfg.History.MaxSize)
	setString("CODESMITH_HISTORY_DSN", &cfg.History.Postgres.DSN)

	setString("CODESMITH_AUTH_TYPE", &cfg.Auth.Type)
	setString("CODESMITH_LOG_FORMAT", &cfg.Logging.Format)

	// CODESMITH_API_KEYS: JSON array of API key configs.
	if v := os.Getenv("CODESMITH_API_KEYS"); v != "" {
		keys, err := parseAPIKeysJSON(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("CODESMITH_API_KEYS: %w", err))
		} else if len(keys) > 0 {
			cfg.Auth.APIKeys = keys
		}
	}

	return errors.Join(errs...)
}

// parseDuration accepts Go duration strings and bare integers as seconds.
func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// parseAPIKeysJSON parses a JSON array of API key configurations.
func parseAPIKeysJSON(jsonStr string) ([]APIKeyConfig, error) {
	var keys []APIKeyConfig
	if err := json.Unmarshal([]byte(jsonStr), &keys); err != nil {
		return nil, fmt.Errorf("parsing API keys JSON: %w", err)
	}
	return keys, nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	backends := []struct {
		name string
		cfg  *BackendConfig
	}{
		{"openai", &cfg.Backends.OpenAI},
		{"claude", &cfg.Backends.Claude},
		{"gemini", &cfg.Backends.Gemini},
		{"grok", &cfg.Backends.Grok},
		{"stub", &cfg.Backends.Stub},
	}
	for _, b := range backends {
		if err := resolve(b.cfg.APIKeyFile, &b.cfg.APIKey); err != nil {
			return fmt.Errorf("backends.%s.api_key_file: %w", b.name, err)
		}
	}

	if err := resolve(cfg.Artifact.S3.SecretKeyFile, &cfg.Artifact.S3.SecretKey); err != nil {
		return fmt.Errorf("artifact.s3.secret_key_file: %w", err)
	}
	if err := resolve(cfg.History.Postgres.DSNFile, &cfg.History.Postgres.DSN); err != nil {
		return fmt.Errorf("history.postgres.dsn_file: %w", err)
	}
	for i := range cfg.Auth.APIKeys {
		if err := resolve(cfg.Auth.APIKeys[i].KeyFile, &cfg.Auth.APIKeys[i].Key); err != nil {
			return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
		}
	}
	return nil
}

// resolve fills *value from file when file is set and *value is empty.
func resolve(file string, value *string) error {
	if file == "" || *value != "" {
		return nil
	}
	v, err := readSecretFile(file)
	if err != nil {
		return err
	}
	*value = v
	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
