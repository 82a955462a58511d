package server

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"

	"resumefit/internal/errors"
	"resumefit/internal/watcher"
)

// configureTLS sets up TLS configuration based on the mode
func (s *Server) configureTLS(httpServer *http.Server) error {
	addr := httpServer.Addr

	switch s.TLSConfig.Mode {
	case "server":
		fmt.Printf("Starting server with HTTPS on https://%s\n", addr)
		tlsConfig, err := s.buildTLSConfig()
		if err != nil {
			return fmt.Errorf("failed to set up TLS: %w", err)
		}
		httpServer.TLSConfig = tlsConfig
		return nil
	case "disabled", "":
		fmt.Printf("Starting server on http://%s\n", addr)
		fmt.Println("TLS mode: Disabled (HTTP only)")
		return nil
	default:
		return fmt.Errorf("invalid TLS mode: %s (must be 'disabled' or 'server')", s.TLSConfig.Mode)
	}
}

// buildTLSConfig creates the TLS configuration
func (s *Server) buildTLSConfig() (*tls.Config, error) {
	store, err := newCertStore(s.TLSConfig.CertFile, s.TLSConfig.KeyFile, s.Logger)
	if err != nil {
		return nil, err
	}

	if s.TLSConfig.AutoReload {
		if err := store.watch(s.AppConfig.Watch.DebounceDelay); err != nil {
			return nil, err
		}
		s.certStore = store
		fmt.Println("TLS auto-reload: ENABLED")
	}

	return &tls.Config{
		MinVersion:     tlsVersion(s.TLSConfig.MinVersion),
		GetCertificate: store.GetCertificate,
	}, nil
}

// tlsVersion maps a configured version string to its constant
func tlsVersion(version string) uint16 {
	switch version {
	case "1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}

// certStore holds the current server certificate and reloads it from
// disk when the files change.
type certStore struct {
	mu       sync.RWMutex
	cert     *tls.Certificate
	certFile string
	keyFile  string
	watcher  *watcher.Watcher
	logger   *errors.Logger
}

func newCertStore(certFile, keyFile string, logger *errors.Logger) (*certStore, error) {
	cs := &certStore{certFile: certFile, keyFile: keyFile, logger: logger}
	if err := cs.reload(); err != nil {
		return nil, err
	}
	return cs, nil
}

// reload loads the key pair, keeping the previous one on failure
func (cs *certStore) reload() error {
	cert, err := tls.LoadX509KeyPair(cs.certFile, cs.keyFile)
	if err != nil {
		return fmt.Errorf("failed to load server cert/key from files: %w", err)
	}

	cs.mu.Lock()
	cs.cert = &cert
	cs.mu.Unlock()
	return nil
}

// GetCertificate returns the current certificate
func (cs *certStore) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.cert, nil
}

func (cs *certStore) watch(debounce time.Duration) error {
	w, err := watcher.New([]string{cs.certFile, cs.keyFile}, debounce, func([]string) {
		if err := cs.reload(); err != nil {
			cs.logger.LogError(err, "Failed to reload TLS certificates")
			return
		}
		cs.logger.Info("TLS certificates reloaded successfully")
	}, cs.logger)
	if err != nil {
		return fmt.Errorf("failed to create certificate watcher: %w", err)
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("failed to start certificate watcher: %w", err)
	}
	cs.watcher = w
	return nil
}

func (cs *certStore) stop() {
	if cs.watcher != nil {
		_ = cs.watcher.Stop()
	}
}
