// Package tls serves the proxy over TLS with certificates that reload
// when rotated on disk. Reloading polls the certificate's mtime instead
// of watching it, which survives the atomic rename dance Kubernetes uses
// for mounted secrets.
package tls

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// CertificateReloader serves the key pair at certFile/keyFile, re-reading
// it when the certificate file's mtime advances.
type CertificateReloader struct {
	certFile string
	keyFile  string
	interval time.Duration
	logger   *slog.Logger

	mu      sync.RWMutex
	cert    *tls.Certificate
	modTime time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewCertificateReloader loads the initial key pair and starts polling.
func NewCertificateReloader(certFile, keyFile string, interval time.Duration) (*CertificateReloader, error) {
	r := &CertificateReloader{
		certFile: certFile,
		keyFile:  keyFile,
		interval: interval,
		logger:   slog.Default().With("component", "tls"),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if err := r.reload(); err != nil {
		return nil, err
	}
	go r.watch()
	return r, nil
}

// GetCertificate implements tls.Config.GetCertificate.
func (r *CertificateReloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.cert == nil {
		return nil, errors.New("no certificate loaded")
	}
	return r.cert, nil
}

// Close stops the polling goroutine.
func (r *CertificateReloader) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
}

func (r *CertificateReloader) reload() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("loading key pair: %w", err)
	}
	info, err := os.Stat(r.certFile)
	if err != nil {
		return fmt.Errorf("stat certificate: %w", err)
	}

	r.mu.Lock()
	r.cert = &cert
	r.modTime = info.ModTime()
	r.mu.Unlock()
	return nil
}

func (r *CertificateReloader) watch() {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			info, err := os.Stat(r.certFile)
			if err != nil {
				r.logger.Warn("stat certificate", "error", err)
				continue
			}
			r.mu.RLock()
			changed := info.ModTime().After(r.modTime)
			r.mu.RUnlock()
			if !changed {
				continue
			}
			if err := r.reload(); err != nil {
				// Keep serving the old pair; rotations write the key and
				// cert separately and can be observed half-done.
				r.logger.Error("reloading certificate", "error", err)
				continue
			}
			r.logger.Info("certificate reloaded", "cert_file", r.certFile)
		}
	}
}

// Build returns a server tls.Config backed by a reloader. The caller must
// Close the reloader on shutdown.
func Build(certFile, keyFile string, interval time.Duration) (*tls.Config, *CertificateReloader, error) {
	reloader, err := NewCertificateReloader(certFile, keyFile, interval)
	if err != nil {
		return nil, nil, err
	}
	cfg := &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: reloader.GetCertificate,
	}
	return cfg, reloader, nil
}
