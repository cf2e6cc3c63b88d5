package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"foundry-hq/hermes/pkg/audit"
	"foundry-hq/hermes/pkg/audit/retention"
	auditstorage "foundry-hq/hermes/pkg/audit/storage"
	"foundry-hq/hermes/pkg/cli"
	"foundry-hq/hermes/pkg/config"
	"foundry-hq/hermes/pkg/proxy/handlers"
	"foundry-hq/hermes/pkg/registry"
	"foundry-hq/hermes/pkg/security/auth"
	"foundry-hq/hermes/pkg/security/secrets"
	"foundry-hq/hermes/pkg/server"
	"foundry-hq/hermes/pkg/telemetry/logging"
	"foundry-hq/hermes/pkg/telemetry/metrics"
	"foundry-hq/hermes/pkg/telemetry/tracing"
	"foundry-hq/hermes/pkg/token"
	"foundry-hq/hermes/pkg/upstream"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Hermes proxy server",
	Long: `Start the Hermes proxy server with the specified configuration.

The server exposes the OpenAI chat completions API, routes requests to the
configured Foundry deployments, and filters reasoning regions out of
responses.

Examples:
  # Start with default config
  hermes run

  # Start with custom config
  hermes run --config /etc/hermes/config.yaml

  # Override listen address
  hermes run --listen 0.0.0.0:9000

  # Validate config without starting the server
  hermes run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address (host:port)")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		host, portStr, err := net.SplitHostPort(runFlags.listenAddress)
		if err != nil {
			return cli.NewConfigError("listen", fmt.Sprintf("invalid listen address %q: %v", runFlags.listenAddress, err))
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return cli.NewConfigError("listen", fmt.Sprintf("invalid listen port %q", portStr))
		}
		cfg.Server.Host = host
		cfg.Server.Port = port
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return cli.NewConfigError("", err.Error())
	}

	logging.Setup(cfg.Logging)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Hermes v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	// Trace export
	shutdownTracing, err := tracing.Setup(context.Background(), cfg.Tracing)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			slog.Warn("trace export shutdown failed", "error", err)
		}
	}()

	// Model registry
	reg, err := registry.Load(cfg)
	if err != nil {
		return cli.NewConfigError("models", err.Error())
	}
	fmt.Printf("✓ Models configured (%d)\n", reg.Len())

	// Client authentication
	secretProvider, err := buildSecretProvider(cfg)
	if err != nil {
		return cli.NewConfigError("auth", err.Error())
	}
	defer secretProvider.Close()
	validator := auth.NewValidator(secretProvider)

	// Upstream token source, warmed up so credential problems surface at
	// startup instead of on the first request. A failed warm-up is not
	// fatal: managed identity can become available after the pod does.
	tokens, err := buildTokenSource(cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	warmupCtx, cancelWarmup := context.WithTimeout(context.Background(), 10*time.Second)
	if _, err := tokens.Token(warmupCtx); err != nil {
		slog.Warn("token warm-up failed, continuing", "error", err)
	} else {
		fmt.Println("✓ Entra token acquired")
	}
	cancelWarmup()

	// Request dependencies
	collector := metrics.NewCollector()
	deps := handlers.Deps{
		Registry:     reg,
		Tokens:       tokens,
		Upstream:     upstream.NewClient(cfg.Upstream.Timeout),
		Metrics:      collector,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}

	// Audit trail
	if cfg.Audit.Enabled != nil && *cfg.Audit.Enabled {
		storage, err := buildAuditStorage(cfg)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		defer storage.Close()

		recorder := audit.NewRecorder(storage, cfg.Audit.BufferSize)
		defer recorder.Close()
		deps.Audit = recorder

		pruner := retention.NewPruner(storage, retention.Policy{
			MaxAge:     cfg.Audit.Retention.MaxAge,
			MaxRecords: cfg.Audit.Retention.MaxRecords,
		})
		if cfg.Audit.Retention.Schedule != "" {
			scheduler, err := retention.NewScheduler(pruner, cfg.Audit.Retention.Schedule)
			if err != nil {
				return cli.NewConfigError("audit.retention.schedule", err.Error())
			}
			scheduler.Start()
			defer scheduler.Stop()
		}
		fmt.Printf("✓ Audit trail enabled (%s)\n", cfg.Audit.Backend)
	}

	// HTTP server
	handler := server.NewHandler(cfg, deps, validator)
	srv, err := server.New(cfg, handler)
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			errChan <- err
		}
	}()

	scheme := "http"
	if cfg.TLS.Enabled {
		scheme = "https"
	}
	fmt.Println()
	fmt.Printf("✓ Server listening on %s\n", cfg.ListenAddr())
	fmt.Printf("✓ Health endpoint: %s://%s/health\n", scheme, cfg.ListenAddr())
	if cfg.Metrics.Enabled != nil && *cfg.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: %s://%s%s\n", scheme, cfg.ListenAddr(), cfg.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for shutdown signal or server error
	select {
	case err := <-errChan:
		return cli.NewCommandError("run", err)
	case sig := <-cli.WaitForShutdown():
		fmt.Printf("\nReceived signal %s, shutting down gracefully...\n", sig)
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("shutdown failed", "error", err)
			return cli.NewCommandError("run", err)
		}
		fmt.Println("✓ Server stopped")
		return nil
	}
}

// buildSecretProvider selects the shared-secret backend: a watched file
// when one is configured, otherwise the inline value. With neither set,
// authentication is unconfigured and every protected request is refused.
func buildSecretProvider(cfg *config.Config) (secrets.Provider, error) {
	if cfg.Auth.SharedSecretFile != "" {
		path := cfg.Auth.SharedSecretFile
		fileProvider, err := secrets.NewFileProvider(filepath.Dir(path))
		if err != nil {
			return nil, err
		}
		return secrets.Alias(fileProvider, map[string]string{
			auth.SecretName: filepath.Base(path),
		}), nil
	}
	if cfg.Auth.SharedSecret != "" {
		return secrets.NewStaticProvider(map[string]string{
			auth.SecretName: cfg.Auth.SharedSecret,
		}), nil
	}
	slog.Warn("no shared secret configured, all protected requests will be refused")
	return secrets.NewStaticProvider(nil), nil
}

func buildTokenSource(cfg *config.Config) (token.Source, error) {
	if cfg.Upstream.Credential == config.CredentialStatic {
		return token.NewStaticSource(cfg.Upstream.StaticToken), nil
	}
	entra, err := token.NewEntraSource(cfg.Upstream)
	if err != nil {
		return nil, err
	}
	return token.NewCachingSource(entra, cfg.Upstream.TokenRefreshSkew), nil
}

func buildAuditStorage(cfg *config.Config) (audit.Storage, error) {
	switch cfg.Audit.Backend {
	case "sqlite":
		return auditstorage.NewSQLite(cfg.Audit.Path)
	case "memory":
		return auditstorage.NewMemory(cfg.Audit.Retention.MaxRecords), nil
	default:
		return nil, fmt.Errorf("unsupported audit backend: %s", cfg.Audit.Backend)
	}
}
