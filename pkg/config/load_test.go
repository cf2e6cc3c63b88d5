package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
server:
  host: 127.0.0.1
  port: 9100
auth:
  shared_secret: local-secret
models:
  gpt-4:
    endpoint: https://foundry.example.com/models
  deepseek-r1:
    endpoint: https://foundry.example.com/models
    deployment: deepseek-r1-prod
    strip_think_tags: false
logging:
  level: debug
  format: json
audit:
  backend: sqlite
  path: /tmp/audit.db
`

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9100 {
		t.Errorf("server = %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Auth.SharedSecret != "local-secret" {
		t.Errorf("shared secret = %q", cfg.Auth.SharedSecret)
	}
	if len(cfg.Models) != 2 {
		t.Fatalf("len(models) = %d", len(cfg.Models))
	}
	if m := cfg.Models["deepseek-r1"]; m.Deployment != "deepseek-r1-prod" || *m.StripThinkTags {
		t.Errorf("deepseek-r1 = %+v", m)
	}
	if m := cfg.Models["gpt-4"]; m.Deployment != "gpt-4" || !*m.StripThinkTags || m.MaxTokensDefault != DefaultMaxTokens {
		t.Errorf("gpt-4 defaults not applied: %+v", m)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Audit.Backend != "sqlite" || cfg.Audit.Path != "/tmp/audit.db" {
		t.Errorf("audit = %+v", cfg.Audit)
	}
	// Untouched sections still get defaults.
	if cfg.Upstream.Timeout != DefaultUpstreamTimeout {
		t.Errorf("upstream timeout = %s", cfg.Upstream.Timeout)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load should fail for a missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	if _, err := Load(writeConfigFile(t, "models: [not, a, map]")); err == nil {
		t.Fatal("Load should fail for YAML of the wrong shape")
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	bad := `
models:
  gpt-4:
    endpoint: not-a-url
`
	if _, err := Load(writeConfigFile(t, bad)); err == nil {
		t.Fatal("Load should fail validation for a malformed endpoint")
	}
}

func TestLoadOrDefaultMissingDefaultPath(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadOrDefault(DefaultPath)
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if cfg.Server.Port != DefaultPort {
		t.Errorf("port = %d, want default %d", cfg.Server.Port, DefaultPort)
	}
}

func TestLoadOrDefaultExplicitMissingPath(t *testing.T) {
	if _, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("an explicitly named missing file must still be an error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HERMES_SERVER_PORT", "9200")
	t.Setenv("HERMES_AUTH_SHARED_SECRET", "env-secret")
	t.Setenv("HERMES_UPSTREAM_TIMEOUT", "45s")
	t.Setenv("HERMES_LOGGING_LEVEL", "warn")
	t.Setenv("HERMES_METRICS_ENABLED", "false")

	cfg, err := Load(writeConfigFile(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9200 {
		t.Errorf("port = %d, want env override 9200", cfg.Server.Port)
	}
	if cfg.Auth.SharedSecret != "env-secret" {
		t.Errorf("shared secret = %q, want env override", cfg.Auth.SharedSecret)
	}
	if cfg.Upstream.Timeout != 45*time.Second {
		t.Errorf("timeout = %s, want 45s", cfg.Upstream.Timeout)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
	if cfg.Metrics.Enabled == nil || *cfg.Metrics.Enabled {
		t.Error("metrics should be disabled by env override")
	}
}

func TestLegacyEnvCompat(t *testing.T) {
	t.Setenv("EXPECTED_API_KEY", "legacy-secret")
	t.Setenv("REQUEST_TIMEOUT", "60")
	t.Setenv("USE_MANAGED_IDENTITY", "true")

	cfg := &Config{}
	applyEnvOverrides(cfg)
	cfg.ApplyDefaults()

	if cfg.Auth.SharedSecret != "legacy-secret" {
		t.Errorf("shared secret = %q", cfg.Auth.SharedSecret)
	}
	if cfg.Upstream.Timeout != 60*time.Second {
		t.Errorf("timeout = %s, want 60s from REQUEST_TIMEOUT seconds", cfg.Upstream.Timeout)
	}
	if cfg.Upstream.Credential != CredentialManagedIdentity {
		t.Errorf("credential = %q", cfg.Upstream.Credential)
	}
}

func TestLegacyEnvDoesNotOverrideExplicit(t *testing.T) {
	t.Setenv("EXPECTED_API_KEY", "legacy-secret")
	t.Setenv("HERMES_AUTH_SHARED_SECRET", "primary-secret")

	cfg := &Config{}
	applyEnvOverrides(cfg)

	if cfg.Auth.SharedSecret != "primary-secret" {
		t.Errorf("shared secret = %q, HERMES_ variables must win over legacy ones", cfg.Auth.SharedSecret)
	}
}
