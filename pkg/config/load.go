package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where configuration is looked up when no --config flag
// is given.
const DefaultPath = "config.yaml"

// Load reads the YAML file at path, applies environment overrides and
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return finish(&cfg)
}

// LoadOrDefault behaves like Load, except that a missing file at the
// default path is not an error: deployments that configure everything
// through the environment run without a config file.
func LoadOrDefault(path string) (*Config, error) {
	if path == DefaultPath {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return finish(&Config{})
		}
	}
	return Load(path)
}

func finish(cfg *Config) (*Config, error) {
	applyEnvOverrides(cfg)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString("HERMES_SERVER_HOST", &cfg.Server.Host)
	setInt("HERMES_SERVER_PORT", &cfg.Server.Port)
	setDuration("HERMES_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	setDuration("HERMES_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	setDuration("HERMES_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	setInt("HERMES_SERVER_MAX_HEADER_BYTES", &cfg.Server.MaxHeaderBytes)

	setString("HERMES_AUTH_SHARED_SECRET", &cfg.Auth.SharedSecret)
	setString("HERMES_AUTH_SHARED_SECRET_FILE", &cfg.Auth.SharedSecretFile)

	setDuration("HERMES_UPSTREAM_TIMEOUT", &cfg.Upstream.Timeout)
	setString("HERMES_UPSTREAM_CREDENTIAL", &cfg.Upstream.Credential)
	setString("HERMES_UPSTREAM_MANAGED_IDENTITY_CLIENT_ID", &cfg.Upstream.ManagedIdentityClientID)
	setString("HERMES_UPSTREAM_STATIC_TOKEN", &cfg.Upstream.StaticToken)
	setString("HERMES_UPSTREAM_SCOPE", &cfg.Upstream.Scope)

	setString("HERMES_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("HERMES_LOGGING_FORMAT", &cfg.Logging.Format)
	setBool("HERMES_LOGGING_ADD_SOURCE", &cfg.Logging.AddSource)

	setBoolPtr("HERMES_METRICS_ENABLED", &cfg.Metrics.Enabled)

	setBoolPtr("HERMES_AUDIT_ENABLED", &cfg.Audit.Enabled)
	setString("HERMES_AUDIT_BACKEND", &cfg.Audit.Backend)
	setString("HERMES_AUDIT_PATH", &cfg.Audit.Path)

	setBool("HERMES_TRACING_ENABLED", &cfg.Tracing.Enabled)
	setString("HERMES_TRACING_ENDPOINT", &cfg.Tracing.Endpoint)

	setBool("HERMES_TLS_ENABLED", &cfg.TLS.Enabled)
	setString("HERMES_TLS_CERT_FILE", &cfg.TLS.CertFile)
	setString("HERMES_TLS_KEY_FILE", &cfg.TLS.KeyFile)

	applyLegacyEnv(cfg)
}

// applyLegacyEnv honors the environment variables of the service this proxy
// replaces, so existing deployment manifests keep working. Legacy variables
// only fill fields nothing else has set.
func applyLegacyEnv(cfg *Config) {
	if v := os.Getenv("EXPECTED_API_KEY"); v != "" && cfg.Auth.SharedSecret == "" {
		cfg.Auth.SharedSecret = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" && cfg.Upstream.Timeout == 0 {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
			cfg.Upstream.Timeout = time.Duration(secs * float64(time.Second))
		}
	}
	if v := os.Getenv("USE_MANAGED_IDENTITY"); v != "" && cfg.Upstream.Credential == "" {
		if ok, err := strconv.ParseBool(v); err == nil && ok {
			cfg.Upstream.Credential = CredentialManagedIdentity
		}
	}
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setBoolPtr(key string, dst **bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = boolPtr(b)
		}
	}
}

func setDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
		}
	}
}
