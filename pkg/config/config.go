package config

import (
	"fmt"
	"net/url"
	"time"
)

// Default values applied to fields left unset by the file and environment.
const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 8000
	DefaultReadTimeout     = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMaxHeaderBytes  = 1 << 20
	DefaultMaxBodyBytes    = 10 << 20

	DefaultUpstreamTimeout  = 120 * time.Second
	DefaultTokenScope       = "https://cognitiveservices.azure.com/.default"
	DefaultTokenRefreshSkew = 2 * time.Minute
	DefaultMaxTokens        = 4096

	DefaultMetricsPath    = "/metrics"
	DefaultAuditBackend   = "memory"
	DefaultAuditPath      = "hermes-audit.db"
	DefaultAuditBuffer    = 256
	DefaultRetentionAge   = 720 * time.Hour
	DefaultRetentionCount = 100000
	DefaultRetentionCron  = "0 3 * * *"

	DefaultTLSReloadInterval = 5 * time.Minute
	DefaultTracingService    = "hermes"
)

// Credential source names accepted by Upstream.Credential.
const (
	CredentialDefault         = "default"
	CredentialManagedIdentity = "managed_identity"
	CredentialStatic          = "static"
)

// Config is the root configuration for the proxy.
type Config struct {
	Server   ServerConfig           `yaml:"server"`
	Auth     AuthConfig             `yaml:"auth"`
	Upstream UpstreamConfig         `yaml:"upstream"`
	Models   map[string]ModelConfig `yaml:"models"`
	Logging  LoggingConfig          `yaml:"logging"`
	Metrics  MetricsConfig          `yaml:"metrics"`
	Tracing  TracingConfig          `yaml:"tracing"`
	Audit    AuditConfig            `yaml:"audit"`
	TLS      TLSConfig              `yaml:"tls"`
}

// ServerConfig controls the listening socket and HTTP server behavior.
// WriteTimeout defaults to zero because streamed responses have no fixed
// upper bound; the upstream timeout bounds the exchange instead.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// AuthConfig controls client authentication. When SharedSecretFile is set
// the secret is read from that file and reloaded when the file changes;
// otherwise SharedSecret is used as-is. Leaving both empty disables client
// authentication, which is only sensible behind another gateway.
type AuthConfig struct {
	SharedSecret     string `yaml:"shared_secret"`
	SharedSecretFile string `yaml:"shared_secret_file"`
}

// UpstreamConfig controls the connection to the inference backend and the
// Entra credential used to authenticate against it.
type UpstreamConfig struct {
	Timeout                 time.Duration `yaml:"timeout"`
	Credential              string        `yaml:"credential"`
	ManagedIdentityClientID string        `yaml:"managed_identity_client_id"`
	StaticToken             string        `yaml:"static_token"`
	Scope                   string        `yaml:"scope"`
	TokenRefreshSkew        time.Duration `yaml:"token_refresh_skew"`
}

// ModelConfig describes one model exposed to clients and the Foundry
// deployment it maps to. Deployment defaults to the model's map key.
type ModelConfig struct {
	Endpoint         string `yaml:"endpoint"`
	Deployment       string `yaml:"deployment"`
	StripThinkTags   *bool  `yaml:"strip_think_tags"`
	MaxTokensDefault int    `yaml:"max_tokens_default"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TracingConfig controls OTLP trace export. Disabled unless an endpoint
// is configured and Enabled is set.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// AuditConfig controls the request audit trail.
type AuditConfig struct {
	Enabled    *bool           `yaml:"enabled"`
	Backend    string          `yaml:"backend"`
	Path       string          `yaml:"path"`
	BufferSize int             `yaml:"buffer_size"`
	Retention  RetentionConfig `yaml:"retention"`
}

// RetentionConfig bounds how long and how many audit records are kept.
type RetentionConfig struct {
	MaxAge     time.Duration `yaml:"max_age"`
	MaxRecords int           `yaml:"max_records"`
	Schedule   string        `yaml:"schedule"`
}

// TLSConfig controls serving over TLS. Certificates are re-read from disk
// periodically so rotations do not require a restart.
type TLSConfig struct {
	Enabled        bool          `yaml:"enabled"`
	CertFile       string        `yaml:"cert_file"`
	KeyFile        string        `yaml:"key_file"`
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

// ApplyDefaults fills in defaults for any field left at its zero value.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = DefaultReadTimeout
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = DefaultIdleTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Server.MaxHeaderBytes == 0 {
		c.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}

	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = DefaultUpstreamTimeout
	}
	if c.Upstream.Credential == "" {
		c.Upstream.Credential = CredentialDefault
	}
	if c.Upstream.Scope == "" {
		c.Upstream.Scope = DefaultTokenScope
	}
	if c.Upstream.TokenRefreshSkew == 0 {
		c.Upstream.TokenRefreshSkew = DefaultTokenRefreshSkew
	}

	for id, m := range c.Models {
		if m.Deployment == "" {
			m.Deployment = id
		}
		if m.StripThinkTags == nil {
			m.StripThinkTags = boolPtr(true)
		}
		if m.MaxTokensDefault == 0 {
			m.MaxTokensDefault = DefaultMaxTokens
		}
		c.Models[id] = m
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	if c.Metrics.Enabled == nil {
		c.Metrics.Enabled = boolPtr(true)
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = DefaultTracingService
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 1.0
	}

	if c.Audit.Enabled == nil {
		c.Audit.Enabled = boolPtr(true)
	}
	if c.Audit.Backend == "" {
		c.Audit.Backend = DefaultAuditBackend
	}
	if c.Audit.Path == "" {
		c.Audit.Path = DefaultAuditPath
	}
	if c.Audit.BufferSize == 0 {
		c.Audit.BufferSize = DefaultAuditBuffer
	}
	if c.Audit.Retention.MaxAge == 0 {
		c.Audit.Retention.MaxAge = DefaultRetentionAge
	}
	if c.Audit.Retention.MaxRecords == 0 {
		c.Audit.Retention.MaxRecords = DefaultRetentionCount
	}
	if c.Audit.Retention.Schedule == "" {
		c.Audit.Retention.Schedule = DefaultRetentionCron
	}

	if c.TLS.ReloadInterval == 0 {
		c.TLS.ReloadInterval = DefaultTLSReloadInterval
	}
}

// Validate checks the configuration for values that cannot work. It is
// called after defaults are applied, so zero values mean explicit zeros.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.MaxBodyBytes < 1 {
		return fmt.Errorf("server.max_body_bytes must be positive, got %d", c.Server.MaxBodyBytes)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	switch c.Upstream.Credential {
	case CredentialDefault, CredentialManagedIdentity:
	case CredentialStatic:
		if c.Upstream.StaticToken == "" {
			return fmt.Errorf("upstream.static_token is required when upstream.credential is %q", CredentialStatic)
		}
	default:
		return fmt.Errorf("upstream.credential must be one of %s, %s, %s; got %q",
			CredentialDefault, CredentialManagedIdentity, CredentialStatic, c.Upstream.Credential)
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive, got %s", c.Upstream.Timeout)
	}
	if c.Upstream.Scope == "" {
		return fmt.Errorf("upstream.scope must not be empty")
	}

	for id, m := range c.Models {
		if id == "" {
			return fmt.Errorf("models must not contain an empty model id")
		}
		if m.Endpoint == "" {
			return fmt.Errorf("models.%s.endpoint must not be empty", id)
		}
		u, err := url.Parse(m.Endpoint)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("models.%s.endpoint must be an http(s) URL, got %q", id, m.Endpoint)
		}
		if m.MaxTokensDefault < 1 {
			return fmt.Errorf("models.%s.max_tokens_default must be positive, got %d", id, m.MaxTokensDefault)
		}
	}

	switch c.Audit.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("audit.backend must be memory or sqlite, got %q", c.Audit.Backend)
	}
	if c.Audit.Backend == "sqlite" && c.Audit.Path == "" {
		return fmt.Errorf("audit.path is required when audit.backend is sqlite")
	}
	if c.Audit.BufferSize < 1 {
		return fmt.Errorf("audit.buffer_size must be positive, got %d", c.Audit.BufferSize)
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing.endpoint is required when tracing is enabled")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing.sample_rate must be between 0 and 1, got %g", c.Tracing.SampleRate)
	}

	if c.TLS.Enabled {
		if c.TLS.CertFile == "" || c.TLS.KeyFile == "" {
			return fmt.Errorf("tls.cert_file and tls.key_file are required when tls is enabled")
		}
	}

	return nil
}

// ListenAddr returns the host:port pair the server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func boolPtr(v bool) *bool { return &v }
