package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"foundry-hq/hermes/pkg/config"
	hermestls "foundry-hq/hermes/pkg/security/tls"
)

// Server owns the listening socket. WriteTimeout is configured to zero by
// default because streamed responses have no fixed upper bound; the
// upstream exchange timeout bounds them instead.
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	reloader   *hermestls.CertificateReloader
	logger     *slog.Logger
}

// New builds a server around the given handler. When TLS is enabled the
// certificate reloader starts immediately so a broken key pair fails here
// rather than on the first handshake.
func New(cfg *config.Config, handler http.Handler) (*Server, error) {
	s := &Server{
		cfg: cfg,
		httpServer: &http.Server{
			Addr:           cfg.ListenAddr(),
			Handler:        handler,
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			IdleTimeout:    cfg.Server.IdleTimeout,
			MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		},
		logger: slog.Default().With("component", "server"),
	}

	if cfg.TLS.Enabled {
		tlsCfg, reloader, err := hermestls.Build(
			cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.ReloadInterval)
		if err != nil {
			return nil, fmt.Errorf("configuring TLS: %w", err)
		}
		s.httpServer.TLSConfig = tlsCfg
		s.reloader = reloader
	}
	return s, nil
}

// ListenAndServe serves until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("listening",
		"addr", s.httpServer.Addr,
		"tls", s.cfg.TLS.Enabled,
	)

	var err error
	if s.cfg.TLS.Enabled {
		// Certificates come from the reloader via GetCertificate.
		err = s.httpServer.ListenAndServeTLS("", "")
	} else {
		err = s.httpServer.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests within the configured shutdown
// timeout, then stops the certificate reloader.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down", "timeout", s.cfg.Server.ShutdownTimeout.String())
	err := s.httpServer.Shutdown(ctx)
	if s.reloader != nil {
		s.reloader.Close()
	}
	if err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
